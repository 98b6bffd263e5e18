package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cloudadept/cloudadept-api/internal/dto"
	"github.com/cloudadept/cloudadept-api/internal/models"
)

// New returns a validator with the custom rules used by contact payloads registered.
func New() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("dotted_domain", dottedDomain)
	return validate
}

// dottedDomain requires the domain part of an address to contain a dot
// that is neither its first nor last character.
func dottedDomain(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 {
		return false
	}
	domain := value[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && !strings.HasSuffix(domain, ".")
}

// ContactRules validates raw contact form input.
type ContactRules struct {
	validate *validator.Validate
}

// NewContactRules constructs the contact rule set. A nil validator is
// replaced by one from New.
func NewContactRules(validate *validator.Validate) *ContactRules {
	if validate == nil {
		validate = New()
	}
	return &ContactRules{validate: validate}
}

// Validate checks the trimmed input. On success it returns the message and a
// nil map; otherwise it returns one message per failing field. Text is
// delivered as typed, markup included; escaping happens where it is rendered.
func (r *ContactRules) Validate(req dto.ContactRequest) (models.ContactMessage, dto.FieldErrors) {
	trimmed := dto.ContactRequest{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Message: strings.TrimSpace(req.Message),
	}

	err := r.validate.Struct(trimmed)
	if err == nil {
		return models.ContactMessage{
			Name:    trimmed.Name,
			Email:   strings.ToLower(trimmed.Email),
			Message: trimmed.Message,
		}, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return models.ContactMessage{}, dto.FieldErrors{"form": err.Error()}
	}

	fields := make(dto.FieldErrors, len(validationErrors))
	for _, fe := range validationErrors {
		field := jsonField(fe.StructField())
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = fieldMessage(fe)
	}
	return models.ContactMessage{}, fields
}

func jsonField(structField string) string {
	switch structField {
	case "Name":
		return "name"
	case "Email":
		return "email"
	case "Message":
		return "message"
	default:
		return strings.ToLower(structField)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Name":
		if fe.Tag() == "max" {
			return "Name must be at most 120 characters"
		}
		return "Name must be at least 2 characters"
	case "Email":
		return "Please enter a valid email address"
	case "Message":
		if fe.Tag() == "max" {
			return "Message must be at most 2000 characters"
		}
		return "Message must be at least 10 characters"
	default:
		return fe.Error()
	}
}
