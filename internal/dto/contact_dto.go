package dto

import "github.com/cloudadept/cloudadept-api/internal/models"

// ContactRequest defines the raw payload submitted by a contact form.
type ContactRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email,dotted_domain,max=160"`
	Message  string `json:"message" validate:"required,min=10,max=2000"`
	Honeypot string `json:"_note"`
}

// ContactResponse communicates the outcome of a delivered submission.
type ContactResponse struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
}

// FieldErrors maps a JSON field name to a human readable validation message.
type FieldErrors map[string]string

// FormCreateRequest mounts a new form instance.
type FormCreateRequest struct {
	Origin string `json:"origin"`
}

// FormValues mirrors the current input of a form.
type FormValues struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Notification is a one-shot message the shell shows as a toast.
type Notification struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FormSnapshot is the serialised view of a form instance consumed by the shell.
type FormSnapshot struct {
	FormID         string                 `json:"form_id"`
	Origin         models.FormOrigin      `json:"origin"`
	State          models.SubmissionState `json:"state"`
	SubmitDisabled bool                   `json:"submit_disabled"`
	Values         FormValues             `json:"values"`
	FieldErrors    FieldErrors            `json:"field_errors,omitempty"`
	Notification   *Notification          `json:"notification,omitempty"`
	ReferenceID    string                 `json:"reference_id,omitempty"`
}

// PageMetadataResponse carries the resolved metadata of a site page.
type PageMetadataResponse struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keywords    string    `json:"keywords"`
	URL         string    `json:"url"`
	Image       string    `json:"image"`
	Tags        []MetaTag `json:"tags"`
}

// MetaTag is a single rendered head tag.
type MetaTag struct {
	Element  string `json:"element"`
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Rel      string `json:"rel,omitempty"`
	Content  string `json:"content"`
}
