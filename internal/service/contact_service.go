package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudadept/cloudadept-api/internal/dto"
	"github.com/cloudadept/cloudadept-api/internal/models"
	"github.com/cloudadept/cloudadept-api/internal/observability"
)

// ErrContactDuplicate indicates the same message was sent recently.
var ErrContactDuplicate = errors.New("duplicate contact submission")

// ContactService exposes the contact submission workflow.
type ContactService interface {
	Submit(ctx context.Context, message models.ContactMessage, origin models.FormOrigin) (dto.ContactResponse, error)
	Configured() bool
}

// ContactEvent is published for every resolved submission. It never carries the message body.
type ContactEvent struct {
	ReferenceID string            `json:"reference_id,omitempty"`
	Origin      models.FormOrigin `json:"origin"`
	Outcome     string            `json:"outcome"`
	Email       string            `json:"email"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

type contactService struct {
	delivery    ContactDelivery
	cache       *redis.Client
	dedupeTTL   time.Duration
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewContactService constructs a contact submission service. The redis client
// and NATS connection are optional.
func NewContactService(delivery ContactDelivery, cache *redis.Client, dedupeTTL time.Duration, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ContactService {
	if dedupeTTL <= 0 {
		dedupeTTL = 5 * time.Minute
	}

	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".contact"
	}

	return &contactService{
		delivery:    delivery,
		cache:       cache,
		dedupeTTL:   dedupeTTL,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "contact_service").Logger(),
		tracer:      otel.Tracer("github.com/cloudadept/cloudadept-api/internal/service/contact"),
	}
}

func (s *contactService) Configured() bool {
	return s.delivery.Configured()
}

func (s *contactService) Submit(ctx context.Context, message models.ContactMessage, origin models.FormOrigin) (dto.ContactResponse, error) {
	ctx, span := s.tracer.Start(ctx, "contact.submit", trace.WithAttributes(
		attribute.String("contact.origin", string(origin)),
	))
	defer span.End()

	maskedEmail := maskEmailAddress(message.Email)
	checksum := computeChecksum(message.Name, message.Email, message.Message)
	span.SetAttributes(attribute.String("contact.checksum", checksum))

	dedupeKey := ""
	if s.cache != nil {
		key := fmt.Sprintf("contact:dedupe:%s", checksum)
		ok, err := s.cache.SetNX(ctx, key, 1, s.dedupeTTL).Result()
		switch {
		case err != nil:
			// Dedupe is best effort; a cache outage must not block delivery.
			span.RecordError(err)
			s.logger.Warn().Err(err).Msg("contact dedupe check failed")
		case !ok:
			span.SetStatus(codes.Error, "duplicate submission")
			observability.ContactSubmissions().WithLabelValues(string(origin), "duplicate").Inc()
			s.publish(ctx, ContactEvent{Origin: origin, Outcome: "duplicate", Email: maskedEmail})
			return dto.ContactResponse{}, ErrContactDuplicate
		default:
			dedupeKey = key
		}
	}

	start := time.Now()
	err := s.delivery.Deliver(ctx, message, origin)
	observability.ContactRelayDuration().WithLabelValues(string(origin)).Observe(time.Since(start).Seconds())

	if err != nil {
		if dedupeKey != "" {
			if delErr := s.cache.Del(context.WithoutCancel(ctx), dedupeKey).Err(); delErr != nil {
				s.logger.Warn().Err(delErr).Msg("failed to release contact dedupe key")
			}
		}

		kind := SubmissionErrorKindOf(err)
		if kind == "" {
			kind = KindDelivery
			err = &SubmissionError{Kind: KindDelivery, Err: err}
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		observability.ContactSubmissions().WithLabelValues(string(origin), string(kind)).Inc()

		event := s.logger.Warn()
		if kind == KindConfiguration {
			event = s.logger.Error()
		}
		event.Err(err).Str("origin", string(origin)).Str("kind", string(kind)).Str("email", maskedEmail).Msg("contact delivery failed")

		s.publish(ctx, ContactEvent{Origin: origin, Outcome: string(kind), Email: maskedEmail})
		return dto.ContactResponse{}, err
	}

	referenceID := uuid.New().String()
	observability.ContactSubmissions().WithLabelValues(string(origin), "sent").Inc()
	s.logger.Info().Str("reference_id", referenceID).Str("origin", string(origin)).Str("email", maskedEmail).Msg("contact submission delivered")
	span.SetStatus(codes.Ok, "delivered")

	s.publish(ctx, ContactEvent{ReferenceID: referenceID, Origin: origin, Outcome: "sent", Email: maskedEmail})

	return dto.ContactResponse{ReferenceID: referenceID, Status: "sent"}, nil
}

func (s *contactService) publish(ctx context.Context, event ContactEvent) {
	if s.nats == nil || s.natsSubject == "" {
		return
	}

	event.OccurredAt = time.Now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode contact event")
		return
	}

	if err := s.nats.Publish(s.natsSubject+"."+event.Outcome, payload); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		s.logger.Warn().Err(err).Str("outcome", event.Outcome).Msg("failed to publish contact event")
	}
}
