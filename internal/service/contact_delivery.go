package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/models"
	"github.com/cloudadept/cloudadept-api/pkg/emailjs"
)

// submissionTimeLayout renders timestamps the way the en-IN locale does.
const submissionTimeLayout = "2/1/2006, 3:04:05 pm"

// ContactDelivery defines a transport to deliver contact messages.
type ContactDelivery interface {
	Deliver(ctx context.Context, message models.ContactMessage, origin models.FormOrigin) error
	Configured() bool
}

// RelayClient sends a rendered template through the email relay.
type RelayClient interface {
	Send(ctx context.Context, params emailjs.TemplateParams) error
	Configured() bool
}

// RelayContactDelivery delivers messages through the templated email relay.
type RelayContactDelivery struct {
	client         RelayClient
	recipientLabel string
	location       *time.Location
	now            func() time.Time
	htmlPolicy     *bluemonday.Policy
	logger         zerolog.Logger
}

// NewRelayContactDelivery constructs a relay-backed delivery.
func NewRelayContactDelivery(client RelayClient, recipientLabel string, location *time.Location, logger zerolog.Logger) *RelayContactDelivery {
	if recipientLabel == "" {
		recipientLabel = "CloudAdept Admin"
	}
	if location == nil {
		location = time.UTC
	}

	return &RelayContactDelivery{
		client:         client,
		recipientLabel: recipientLabel,
		location:       location,
		now:            time.Now,
		htmlPolicy:     bluemonday.NewPolicy().AllowElements("br"),
		logger:         logger.With().Str("component", "contact_delivery").Logger(),
	}
}

// Configured reports whether the relay has usable credentials.
func (d *RelayContactDelivery) Configured() bool {
	return d.client.Configured()
}

// Deliver sends one message. Failures are always returned as *SubmissionError.
func (d *RelayContactDelivery) Deliver(ctx context.Context, message models.ContactMessage, origin models.FormOrigin) error {
	params := emailjs.TemplateParams{
		FromName:    message.Name,
		FromEmail:   message.Email,
		ReplyTo:     message.Email,
		ToName:      d.recipientLabel,
		Name:        message.Name,
		Email:       message.Email,
		Message:     message.Message,
		MessageHTML: d.renderHTML(message.Message),
		Title:       origin.SubjectLabel(),
		Time:        d.now().In(d.location).Format(submissionTimeLayout),
	}

	if err := d.client.Send(ctx, params); err != nil {
		return classifyRelayError(err)
	}
	return nil
}

// renderHTML escapes the message for HTML email bodies. The raw text is
// never altered; only the line breaks become markup.
func (d *RelayContactDelivery) renderHTML(text string) string {
	escaped := html.EscapeString(strings.ReplaceAll(text, "\r\n", "\n"))
	return d.htmlPolicy.Sanitize(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func classifyRelayError(err error) error {
	var statusErr *emailjs.StatusError
	var transportErr *emailjs.TransportError

	switch {
	case errors.Is(err, emailjs.ErrNotConfigured), errors.Is(err, emailjs.ErrInvalidRequest):
		return &SubmissionError{Kind: KindConfiguration, Err: err}
	case errors.As(err, &statusErr):
		return &SubmissionError{Kind: KindDelivery, Err: err}
	case errors.As(err, &transportErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &SubmissionError{Kind: KindNetwork, Err: err}
	default:
		return &SubmissionError{Kind: KindDelivery, Err: err}
	}
}
