package emailjs

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultEndpoint is the EmailJS REST send endpoint.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 512
	requestSchemaURL = "https://api.emailjs.com/schemas/send-request.json"
)

var (
	// ErrNotConfigured indicates a missing or placeholder credential. No request is sent.
	ErrNotConfigured = errors.New("emailjs is not configured")
	// ErrInvalidRequest indicates the outgoing body does not satisfy the send contract.
	ErrInvalidRequest = errors.New("emailjs request violates the send contract")
)

//go:embed request.schema.json
var requestSchemaJSON string

var requestSchema = jsonschema.MustCompileString(requestSchemaURL, requestSchemaJSON)

var placeholderValues = map[string]struct{}{
	"your_service_id":  {},
	"your_template_id": {},
	"your_public_key":  {},
	"your_private_key": {},
	"changeme":         {},
	"placeholder":      {},
	"todo":             {},
}

// Config contains the identifiers required to send through EmailJS.
type Config struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	Endpoint   string
	Timeout    time.Duration
}

// Validate reports the first missing or placeholder credential.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"service id", c.ServiceID},
		{"template id", c.TemplateID},
		{"public key", c.PublicKey},
	}

	for _, field := range required {
		value := strings.TrimSpace(field.value)
		if value == "" {
			return fmt.Errorf("%w: %s is missing", ErrNotConfigured, field.name)
		}
		if IsPlaceholder(value) {
			return fmt.Errorf("%w: %s is a placeholder", ErrNotConfigured, field.name)
		}
	}

	if key := strings.TrimSpace(c.PrivateKey); key != "" && IsPlaceholder(key) {
		return fmt.Errorf("%w: private key is a placeholder", ErrNotConfigured)
	}

	endpoint, err := url.Parse(c.endpoint())
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return fmt.Errorf("%w: endpoint %q is not an absolute http url", ErrNotConfigured, c.endpoint())
	}

	return nil
}

func (c Config) endpoint() string {
	if endpoint := strings.TrimSpace(c.Endpoint); endpoint != "" {
		return endpoint
	}
	return DefaultEndpoint
}

// IsPlaceholder reports whether value is a default that was never replaced.
func IsPlaceholder(value string) bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if _, ok := placeholderValues[normalized]; ok {
		return true
	}
	if strings.HasPrefix(normalized, "your_") {
		return true
	}
	return strings.HasPrefix(normalized, "<") && strings.HasSuffix(normalized, ">")
}

// TemplateParams are the variables rendered by the EmailJS template.
type TemplateParams struct {
	FromName    string `json:"from_name"`
	FromEmail   string `json:"from_email"`
	ReplyTo     string `json:"reply_to"`
	ToName      string `json:"to_name"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	// MessageHTML is Message escaped for HTML templates, line breaks kept.
	MessageHTML string `json:"message_html,omitempty"`
	Title       string `json:"title"`
	Time        string `json:"time"`
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams TemplateParams `json:"template_params"`
}

// StatusError is returned when EmailJS answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("emailjs responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("emailjs responded with status %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps failures that happened before a response was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("emailjs transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client sends templated emails through the EmailJS REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// New constructs a client. Credentials are checked on every Send so that a
// misconfigured process still starts and refuses submissions.
func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "emailjs").Logger(),
	}
}

// Configured reports whether Send would attempt a network call.
func (c *Client) Configured() bool {
	return c.cfg.Validate() == nil
}

// Send performs exactly one POST to EmailJS. It never retries.
func (c *Client) Send(ctx context.Context, params TemplateParams) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	body := sendRequest{
		ServiceID:      strings.TrimSpace(c.cfg.ServiceID),
		TemplateID:     strings.TrimSpace(c.cfg.TemplateID),
		UserID:         strings.TrimSpace(c.cfg.PublicKey),
		AccessToken:    strings.TrimSpace(c.cfg.PrivateKey),
		TemplateParams: params,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validateRequest(payload); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("template_id", body.TemplateID).
		Msg("emailjs send completed")

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

func validateRequest(payload []byte) error {
	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := requestSchema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
