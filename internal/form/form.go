package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/dto"
	"github.com/cloudadept/cloudadept-api/internal/models"
	"github.com/cloudadept/cloudadept-api/internal/observability"
	"github.com/cloudadept/cloudadept-api/internal/service"
)

const subscriberBufferSize = 8

var (
	// ErrSpam indicates the honeypot field was filled.
	ErrSpam = errors.New("contact submission flagged as spam")
	// ErrValidation indicates at least one field failed validation.
	ErrValidation = errors.New("contact form has invalid fields")
	// ErrSubmissionInFlight rejects a submit while another one is running.
	ErrSubmissionInFlight = errors.New("contact submission already in flight")
	// ErrAlreadySubmitted rejects a submit until the form is reset.
	ErrAlreadySubmitted = errors.New("contact form already submitted")
	// ErrFormClosed is returned once a form has been unmounted.
	ErrFormClosed = errors.New("contact form has been unmounted")
)

// Validator turns raw input into a contact message or field errors.
type Validator interface {
	Validate(req dto.ContactRequest) (models.ContactMessage, dto.FieldErrors)
}

// Submitter performs the single outbound delivery of a message.
type Submitter interface {
	Submit(ctx context.Context, message models.ContactMessage, origin models.FormOrigin) (dto.ContactResponse, error)
}

// Form is one mounted contact form. All mutation goes through Transition.
type Form struct {
	id        string
	origin    models.FormOrigin
	rules     Validator
	submitter Submitter
	logger    zerolog.Logger

	mu           sync.Mutex
	state        models.SubmissionState
	values       dto.FormValues
	fieldErrors  dto.FieldErrors
	notification *dto.Notification
	referenceID  string
	closed       bool
	lastActivity time.Time
	subscribers  map[chan dto.FormSnapshot]struct{}
}

// New constructs an idle form instance.
func New(id string, origin models.FormOrigin, rules Validator, submitter Submitter, logger zerolog.Logger) *Form {
	return &Form{
		id:           id,
		origin:       origin,
		rules:        rules,
		submitter:    submitter,
		logger:       logger.With().Str("component", "contact_form").Str("form_id", id).Logger(),
		state:        models.StateIdle,
		lastActivity: time.Now(),
		subscribers:  make(map[chan dto.FormSnapshot]struct{}),
	}
}

// ID returns the form identifier.
func (f *Form) ID() string {
	return f.id
}

// Origin returns the page hosting the form.
func (f *Form) Origin() models.FormOrigin {
	return f.origin
}

// Submit validates the input and, when valid, delivers it before returning.
// The returned error is the validation, guard or delivery error, if any.
func (f *Form) Submit(ctx context.Context, req dto.ContactRequest) (dto.FormSnapshot, error) {
	message, snapshot, err := f.begin(req)
	if err != nil {
		return snapshot, err
	}
	return f.run(ctx, message)
}

// SubmitAsync is Submit without waiting for delivery. It returns the
// submitting snapshot; the outcome is observable through Subscribe.
func (f *Form) SubmitAsync(ctx context.Context, req dto.ContactRequest) (dto.FormSnapshot, error) {
	message, snapshot, err := f.begin(req)
	if err != nil {
		return snapshot, err
	}
	go func() {
		_, _ = f.run(ctx, message)
	}()
	return snapshot, nil
}

func (f *Form) begin(req dto.ContactRequest) (models.ContactMessage, dto.FormSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastActivity = time.Now()

	if f.closed {
		return models.ContactMessage{}, f.snapshotLocked(), ErrFormClosed
	}
	if strings.TrimSpace(req.Honeypot) != "" {
		return models.ContactMessage{}, f.snapshotLocked(), ErrSpam
	}
	switch f.state {
	case models.StateSubmitting:
		return models.ContactMessage{}, f.snapshotLocked(), ErrSubmissionInFlight
	case models.StateSubmitted:
		return models.ContactMessage{}, f.snapshotLocked(), ErrAlreadySubmitted
	}

	f.values = dto.FormValues{Name: req.Name, Email: req.Email, Message: req.Message}
	f.notification = nil

	message, fields := f.rules.Validate(req)
	if len(fields) > 0 {
		f.fieldErrors = fields
		snapshot := f.snapshotLocked()
		f.broadcastLocked(snapshot)
		return models.ContactMessage{}, snapshot, ErrValidation
	}

	f.fieldErrors = nil
	if err := f.applyLocked(EventSubmit); err != nil {
		return models.ContactMessage{}, f.snapshotLocked(), err
	}

	snapshot := f.snapshotLocked()
	f.broadcastLocked(snapshot)
	return message, snapshot, nil
}

// run performs the delivery on a context that ignores caller cancellation and
// always resolves the submitting state exactly once.
func (f *Form) run(ctx context.Context, message models.ContactMessage) (snapshot dto.FormSnapshot, err error) {
	var resp dto.ContactResponse

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("contact submission panicked: %v", r)
			}
		}()
		resp, err = f.submitter.Submit(context.WithoutCancel(ctx), message, f.origin)
	}()

	return f.finish(resp, err), err
}

func (f *Form) finish(resp dto.ContactResponse, err error) dto.FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastActivity = time.Now()

	if f.closed {
		f.logger.Debug().Err(err).Msg("submission resolved after unmount; dropping result")
		return f.snapshotLocked()
	}

	if err != nil {
		_ = f.applyLocked(EventFail)
		f.notification = notificationFor(err)
		if service.SubmissionErrorKindOf(err) == "" && !errors.Is(err, service.ErrContactDuplicate) {
			f.logger.Error().Err(err).Msg("unexpected contact submission failure")
		}
	} else {
		_ = f.applyLocked(EventSucceed)
		f.values = dto.FormValues{}
		f.referenceID = resp.ReferenceID
		f.notification = &dto.Notification{Level: "success", Code: "sent", Message: "Message sent successfully!"}
	}

	snapshot := f.snapshotLocked()
	f.broadcastLocked(snapshot)
	return snapshot
}

// Reset returns a submitted form to idle and clears its inputs.
func (f *Form) Reset() (dto.FormSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastActivity = time.Now()

	if f.closed {
		return f.snapshotLocked(), ErrFormClosed
	}
	if f.state == models.StateSubmitting {
		return f.snapshotLocked(), ErrSubmissionInFlight
	}
	if err := f.applyLocked(EventReset); err != nil {
		return f.snapshotLocked(), err
	}

	f.values = dto.FormValues{}
	f.fieldErrors = nil
	f.notification = nil
	f.referenceID = ""

	snapshot := f.snapshotLocked()
	f.broadcastLocked(snapshot)
	return snapshot, nil
}

// Snapshot returns the current view without side effects.
func (f *Form) Snapshot() dto.FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Consume returns the current view and clears the one-shot notification.
func (f *Form) Consume() dto.FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastActivity = time.Now()
	snapshot := f.snapshotLocked()
	f.notification = nil
	return snapshot
}

// State returns the current submission state.
func (f *Form) State() models.SubmissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Closed reports whether the form has been unmounted.
func (f *Form) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Subscribe streams a snapshot after every change. The returned function
// releases the subscription. The channel is closed when the form is unmounted.
func (f *Form) Subscribe() (<-chan dto.FormSnapshot, func()) {
	ch := make(chan dto.FormSnapshot, subscriberBufferSize)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subscribers[ch]; ok {
				delete(f.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close unmounts the form. Results of an in-flight submission are discarded.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

// closeIfIdleSince closes the form when it has no submission in flight and
// was last touched before cutoff. It reports whether the form was closed.
func (f *Form) closeIfIdleSince(cutoff time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.state == models.StateSubmitting || !f.lastActivity.Before(cutoff) {
		return false
	}
	f.closeLocked()
	return true
}

func (f *Form) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subscribers {
		delete(f.subscribers, ch)
		close(ch)
	}
}

func (f *Form) applyLocked(event Event) error {
	next, err := Transition(f.state, event)
	if err != nil {
		return err
	}
	observability.ContactFormTransitions().WithLabelValues(string(f.state), string(next)).Inc()
	f.state = next
	return nil
}

func (f *Form) snapshotLocked() dto.FormSnapshot {
	snapshot := dto.FormSnapshot{
		FormID:         f.id,
		Origin:         f.origin,
		State:          f.state,
		SubmitDisabled: f.state == models.StateSubmitting,
		Values:         f.values,
		ReferenceID:    f.referenceID,
	}
	if len(f.fieldErrors) > 0 {
		snapshot.FieldErrors = make(dto.FieldErrors, len(f.fieldErrors))
		for field, message := range f.fieldErrors {
			snapshot.FieldErrors[field] = message
		}
	}
	if f.notification != nil {
		notification := *f.notification
		snapshot.Notification = &notification
	}
	return snapshot
}

// broadcastLocked never blocks: a full subscriber loses its oldest snapshot.
func (f *Form) broadcastLocked(snapshot dto.FormSnapshot) {
	for ch := range f.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func notificationFor(err error) *dto.Notification {
	switch {
	case errors.Is(err, service.ErrConfiguration):
		return &dto.Notification{Level: "error", Code: string(service.KindConfiguration), Message: "Email service is not configured. Please try again later."}
	case errors.Is(err, service.ErrNetwork):
		return &dto.Notification{Level: "error", Code: string(service.KindNetwork), Message: "An error occurred. Please try again later."}
	case errors.Is(err, service.ErrContactDuplicate):
		return &dto.Notification{Level: "error", Code: "duplicate", Message: "This message was already sent. Please wait before sending it again."}
	default:
		return &dto.Notification{Level: "error", Code: string(service.KindDelivery), Message: "Failed to send message. Please try again later."}
	}
}
