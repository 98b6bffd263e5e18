package models

import "strings"

// ContactMessage is a validated contact form submission. It is built by the
// validation rules and passed by value; nothing mutates it after creation.
type ContactMessage struct {
	Name    string
	Email   string
	Message string
}

// SubmissionState is the lifecycle state of a single contact form instance.
type SubmissionState string

const (
	StateIdle       SubmissionState = "idle"
	StateSubmitting SubmissionState = "submitting"
	StateSubmitted  SubmissionState = "submitted"
)

// FormOrigin identifies which page hosts a contact form.
type FormOrigin string

const (
	OriginHome    FormOrigin = "home"
	OriginContact FormOrigin = "contact"
)

// ParseFormOrigin normalises user input into a known origin. Empty input
// defaults to the contact page.
func ParseFormOrigin(raw string) (FormOrigin, bool) {
	switch FormOrigin(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OriginContact:
		return OriginContact, true
	case OriginHome:
		return OriginHome, true
	default:
		return "", false
	}
}

// SubjectLabel is the static subject line sent with submissions from this origin.
func (o FormOrigin) SubjectLabel() string {
	if o == OriginHome {
		return "New Home Page Inquiry - CloudAdept"
	}
	return "Contact Page Inquiry"
}
