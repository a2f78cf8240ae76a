package piracy

import "strings"

// NoticeData carries the fields a takedown template may reference.
// JSON names double as the field names used by template validation.
type NoticeData struct {
	WorkTitle       string `json:"workTitle"`
	WorkAuthor      string `json:"workAuthor,omitempty"`
	WorkISBN        string `json:"workIsbn,omitempty"`
	InfringingURL   string `json:"infringingUrl"`
	Domain          string `json:"domain"`
	ClaimantName    string `json:"claimantName"`
	ClaimantEmail   string `json:"claimantEmail"`
	ClaimantCompany string `json:"claimantCompany,omitempty"`
	ClaimantAddress string `json:"claimantAddress,omitempty"`
	ClaimantPhone   string `json:"claimantPhone,omitempty"`
	EvidenceURL     string `json:"evidenceUrl,omitempty"`
	DetectionDate   string `json:"detectionDate"`
	Signature       string `json:"signature,omitempty"`
}

func (d *NoticeData) fieldRef(name string) *string {
	switch name {
	case "workTitle":
		return &d.WorkTitle
	case "workAuthor":
		return &d.WorkAuthor
	case "workIsbn":
		return &d.WorkISBN
	case "infringingUrl":
		return &d.InfringingURL
	case "domain":
		return &d.Domain
	case "claimantName":
		return &d.ClaimantName
	case "claimantEmail":
		return &d.ClaimantEmail
	case "claimantCompany":
		return &d.ClaimantCompany
	case "claimantAddress":
		return &d.ClaimantAddress
	case "claimantPhone":
		return &d.ClaimantPhone
	case "evidenceUrl":
		return &d.EvidenceURL
	case "detectionDate":
		return &d.DetectionDate
	case "signature":
		return &d.Signature
	}
	return nil
}

// Field returns the named field, or "" for unknown names.
func (d NoticeData) Field(name string) string {
	if ref := d.fieldRef(name); ref != nil {
		return *ref
	}
	return ""
}

// Has reports whether the named field holds a non-blank value.
func (d NoticeData) Has(name string) bool {
	return strings.TrimSpace(d.Field(name)) != ""
}

// Merge overwrites fields from overrides. Unknown keys are ignored.
func (d NoticeData) Merge(overrides map[string]string) NoticeData {
	for name, value := range overrides {
		if ref := d.fieldRef(name); ref != nil {
			*ref = value
		}
	}
	return d
}
