package templates

const googleSearchBody = `DMCA TAKEDOWN NOTICE

I, {{.ClaimantName}}, am the copyright owner (or authorized agent) of the work described below.

IDENTIFICATION OF COPYRIGHTED WORK:
Title: {{.WorkTitle}}
{{if .WorkAuthor}}Author: {{.WorkAuthor}}{{end}}
{{if .WorkISBN}}ISBN: {{.WorkISBN}}{{end}}

INFRINGING MATERIAL:
URL: {{.InfringingURL}}
Domain: {{.Domain}}
Date Detected: {{.DetectionDate}}

I have a good faith belief that use of the copyrighted materials described above on the allegedly infringing web pages is not authorized by the copyright owner, its agent, or the law.

I swear, under penalty of perjury, that the information in the notification is accurate and that I am the copyright owner or am authorized to act on behalf of the owner of an exclusive right that is allegedly infringed.

I acknowledge that under Section 512(f) of the DMCA any person who knowingly materially misrepresents that material or activity is infringing may be subject to liability for damages.

CONTACT INFORMATION:
Name: {{.ClaimantName}}
{{if .ClaimantCompany}}Company: {{.ClaimantCompany}}{{end}}
Email: {{.ClaimantEmail}}
{{if .ClaimantPhone}}Phone: {{.ClaimantPhone}}{{end}}
{{if .ClaimantAddress}}Address: {{.ClaimantAddress}}{{end}}

Signature: {{.Signature}}
Date: {{.DetectionDate}}`

const genericDMCABody = `Dear Sir/Madam,

I am writing to notify you of copyright infringement on your platform.

I, {{.ClaimantName}}, am the copyright owner (or authorized representative) of the following work:

COPYRIGHTED WORK:
- Title: {{.WorkTitle}}
{{if .WorkAuthor}}- Author: {{.WorkAuthor}}{{end}}
{{if .WorkISBN}}- ISBN: {{.WorkISBN}}{{end}}

INFRINGING CONTENT LOCATION:
{{.InfringingURL}}

This content has been uploaded/published without authorization from the copyright holder.

Pursuant to the Digital Millennium Copyright Act (17 U.S.C. § 512), I request that you expeditiously remove or disable access to the infringing material.

I have a good faith belief that use of the material in the manner complained of is not authorized by the copyright owner, its agent, or the law.

I swear, under penalty of perjury, that the information in this notification is accurate, and that I am the copyright owner or am authorized to act on behalf of the owner.

Please confirm receipt of this notice and inform me of any action taken.

Sincerely,

{{.ClaimantName}}
{{if .ClaimantCompany}}{{.ClaimantCompany}}{{end}}
{{.ClaimantEmail}}
{{if .ClaimantPhone}}Tel: {{.ClaimantPhone}}{{end}}`

const scribdBody = `To Scribd Copyright Team,

I am reporting copyright infringement of my work on your platform.

COPYRIGHTED WORK:
Title: {{.WorkTitle}}
{{if .WorkAuthor}}Author: {{.WorkAuthor}}{{end}}
{{if .WorkISBN}}ISBN: {{.WorkISBN}}{{end}}

INFRINGING URL:
{{.InfringingURL}}

I am the copyright owner (or authorized to act on behalf of the owner) and I did not authorize this upload.

Please remove this content immediately.

Contact Information:
{{.ClaimantName}}
{{.ClaimantEmail}}
{{if .ClaimantCompany}}{{.ClaimantCompany}}{{end}}

I declare under penalty of perjury that this notice is accurate and that I am the copyright owner or authorized to act on behalf of the owner.

{{.Signature}}
{{.DetectionDate}}`
