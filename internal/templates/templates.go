// Package templates holds the immutable registry of takedown notice templates.
package templates

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// DeliveryType is how a rendered notice reaches the platform.
type DeliveryType string

// Delivery types.
const (
	DeliveryEmail DeliveryType = "EMAIL"
	DeliveryForm  DeliveryType = "FORM"
	DeliveryAPI   DeliveryType = "API"
)

// Template IDs.
const (
	GoogleSearchDMCA = "google-search-dmca"
	GenericDMCAEmail = "generic-dmca-email"
	ScribdDMCA       = "scribd-dmca"
)

// NotFoundField is reported by Validate for unknown template IDs.
const NotFoundField = "Template not found"

var commonRequired = []string{"workTitle", "infringingUrl", "claimantName", "claimantEmail"}

// Template describes one notice.
type Template struct {
	ID             string                  `json:"id"`
	Platform       piracy.TakedownPlatform `json:"platform"`
	Name           string                  `json:"name"`
	Type           DeliveryType            `json:"type"`
	Subject        string                  `json:"subject"`
	Body           string                  `json:"body"`
	RequiredFields []string                `json:"requiredFields"`
	RecipientEmail string                  `json:"recipientEmail,omitempty"`

	subject *template.Template
	body    *template.Template
}

// Rendered is a notice ready to send.
type Rendered struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Registry is safe for concurrent use; its contents never change after New.
type Registry struct {
	byID  map[string]*Template
	order []string
}

// New compiles the built-in templates.
func New() *Registry {
	defs := []Template{
		{
			ID:             GoogleSearchDMCA,
			Platform:       piracy.PlatformGoogleSearch,
			Name:           "Google Search DMCA Notice",
			Type:           DeliveryForm,
			Subject:        "DMCA Takedown Request - {{.WorkTitle}}",
			Body:           googleSearchBody,
			RequiredFields: commonRequired,
		},
		{
			ID:             GenericDMCAEmail,
			Platform:       piracy.PlatformGenericDMCA,
			Name:           "Generic DMCA Email",
			Type:           DeliveryEmail,
			Subject:        "DMCA Copyright Infringement Notice - {{.WorkTitle}}",
			Body:           genericDMCABody,
			RequiredFields: commonRequired,
		},
		{
			ID:             ScribdDMCA,
			Platform:       piracy.PlatformScribd,
			Name:           "Scribd DMCA Notice",
			Type:           DeliveryEmail,
			Subject:        "Copyright Infringement Report - {{.WorkTitle}}",
			Body:           scribdBody,
			RequiredFields: commonRequired,
			RecipientEmail: "copyright@scribd.com",
		},
	}

	r := &Registry{byID: make(map[string]*Template, len(defs))}
	for i := range defs {
		t := defs[i]
		t.subject = template.Must(template.New(t.ID + ".subject").Option("missingkey=zero").Parse(t.Subject))
		t.body = template.Must(template.New(t.ID + ".body").Option("missingkey=zero").Parse(t.Body))
		r.byID[t.ID] = &t
		r.order = append(r.order, t.ID)
	}
	sort.Strings(r.order)
	return r
}

// Get returns a copy of the template with id.
func (r *Registry) Get(id string) (Template, bool) {
	t, ok := r.byID[id]
	if !ok {
		return Template{}, false
	}
	return t.clone(), true
}

func (t *Template) clone() Template {
	c := *t
	c.RequiredFields = append([]string(nil), t.RequiredFields...)
	return c
}

// All returns every template ordered by ID.
func (r *Registry) All() []Template {
	out := make([]Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// ForPlatform returns the templates addressed to platform.
func (r *Registry) ForPlatform(platform piracy.TakedownPlatform) []Template {
	var out []Template
	for _, id := range r.order {
		if t := r.byID[id]; t.Platform == platform {
			out = append(out, t.clone())
		}
	}
	return out
}

// Validate lists the required fields data leaves blank.
func (r *Registry) Validate(id string, data piracy.NoticeData) []string {
	t, ok := r.byID[id]
	if !ok {
		return []string{NotFoundField}
	}
	missing := []string{}
	for _, field := range t.RequiredFields {
		if !data.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// Render substitutes data into the template's subject and body.
func (r *Registry) Render(id string, data piracy.NoticeData) (Rendered, error) {
	t, ok := r.byID[id]
	if !ok {
		return Rendered{}, fmt.Errorf("template %q: %w", id, piracy.ErrNotFound)
	}
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", id, err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s body: %w", id, err)
	}
	return Rendered{Subject: subject.String(), Body: body.String()}, nil
}
