package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cloudadept/cloudadept-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type deliveryStub struct {
	mu         sync.Mutex
	calls      int
	err        error
	configured bool
	last       models.ContactMessage
}

func (d *deliveryStub) Deliver(_ context.Context, message models.ContactMessage, _ models.FormOrigin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.last = message
	return d.err
}

func (d *deliveryStub) Configured() bool {
	return d.configured
}

func (d *deliveryStub) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func sampleMessage() models.ContactMessage {
	return models.ContactMessage{Name: "User", Email: "user@example.com", Message: "Hello world, please call me."}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestContactServiceSuccess(t *testing.T) {
	delivery := &deliveryStub{configured: true}
	svc := NewContactService(delivery, nil, 0, nil, "", testLogger())

	resp, err := svc.Submit(context.Background(), sampleMessage(), models.OriginContact)
	require.NoError(t, err)
	require.Equal(t, "sent", resp.Status)
	require.NotEmpty(t, resp.ReferenceID)
	require.Equal(t, 1, delivery.callCount())
	require.Equal(t, sampleMessage(), delivery.last)
	require.True(t, svc.Configured())
}

func TestContactServiceDuplicate(t *testing.T) {
	delivery := &deliveryStub{configured: true}
	svc := NewContactService(delivery, newRedis(t), time.Minute, nil, "", testLogger())

	_, err := svc.Submit(context.Background(), sampleMessage(), models.OriginContact)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), sampleMessage(), models.OriginHome)
	require.ErrorIs(t, err, ErrContactDuplicate)
	require.Equal(t, 1, delivery.callCount())
}

func TestContactServiceReleasesDedupeKeyOnFailure(t *testing.T) {
	delivery := &deliveryStub{configured: true, err: &SubmissionError{Kind: KindNetwork, Err: errors.New("dial tcp: timeout")}}
	svc := NewContactService(delivery, newRedis(t), time.Minute, nil, "", testLogger())

	_, err := svc.Submit(context.Background(), sampleMessage(), models.OriginContact)
	require.ErrorIs(t, err, ErrNetwork)

	delivery.mu.Lock()
	delivery.err = nil
	delivery.mu.Unlock()

	resp, err := svc.Submit(context.Background(), sampleMessage(), models.OriginContact)
	require.NoError(t, err)
	require.Equal(t, "sent", resp.Status)
	require.Equal(t, 2, delivery.callCount())
}

func TestContactServiceContinuesWhenCacheUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	delivery := &deliveryStub{configured: true}
	svc := NewContactService(delivery, client, time.Minute, nil, "", testLogger())

	_, err := svc.Submit(context.Background(), sampleMessage(), models.OriginContact)
	require.NoError(t, err)
	require.Equal(t, 1, delivery.callCount())
}

func TestContactServiceDeliveryFailureKinds(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"configuration", &SubmissionError{Kind: KindConfiguration, Err: errors.New("missing")}, ErrConfiguration},
		{"delivery", &SubmissionError{Kind: KindDelivery, Err: errors.New("400")}, ErrDelivery},
		{"network", &SubmissionError{Kind: KindNetwork, Err: errors.New("reset")}, ErrNetwork},
		{"untyped", errors.New("boom"), ErrDelivery},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewContactService(&deliveryStub{err: tc.err}, nil, 0, nil, "", testLogger())

			_, err := svc.Submit(context.Background(), sampleMessage(), models.OriginHome)
			require.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestMaskEmailAddress(t *testing.T) {
	require.Equal(t, "j***n@example.com", maskEmailAddress("John@Example.com"))
	require.Equal(t, "j***@x.com", maskEmailAddress("jo@x.com"))
	require.Equal(t, "***", maskEmailAddress("invalid"))
	require.Equal(t, "", maskEmailAddress("  "))
}
