package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cloudadept/cloudadept-api/internal/dto"
	"github.com/cloudadept/cloudadept-api/internal/form"
	"github.com/cloudadept/cloudadept-api/internal/handler"
	"github.com/cloudadept/cloudadept-api/internal/models"
	"github.com/cloudadept/cloudadept-api/internal/validation"
)

func decodeSnapshot(t *testing.T, body envelope) dto.FormSnapshot {
	t.Helper()
	var snapshot dto.FormSnapshot
	require.NoError(t, json.Unmarshal(body.Data, &snapshot))
	return snapshot
}

func TestContactFormHandler_Lifecycle(t *testing.T) {
	submitter := &stubSubmitter{}
	app, registry := newContactApp(submitter)

	resp, body := doRequest(t, app, jsonRequest(t, http.MethodPost, "/api/v1/contact/forms", map[string]string{"origin": "home"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeSnapshot(t, body)
	require.NotEmpty(t, created.FormID)
	require.Equal(t, models.OriginHome, created.Origin)
	require.Equal(t, models.StateIdle, created.State)
	require.Equal(t, 1, registry.Len())

	base := "/api/v1/contact/forms/" + created.FormID

	resp, body = doRequest(t, app, jsonRequest(t, http.MethodPost, base+"/submit", validPayload()))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	submitted := decodeSnapshot(t, body)
	require.Equal(t, models.StateSubmitted, submitted.State)
	require.Equal(t, dto.FormValues{}, submitted.Values)

	resp, _ = doRequest(t, app, jsonRequest(t, http.MethodPost, base+"/submit", validPayload()))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, 1, submitter.callCount())

	resp, body = doRequest(t, app, jsonRequest(t, http.MethodGet, base, nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	first := decodeSnapshot(t, body)
	require.NotNil(t, first.Notification)
	require.Equal(t, "Message sent successfully!", first.Notification.Message)

	_, body = doRequest(t, app, jsonRequest(t, http.MethodGet, base, nil))
	require.Nil(t, decodeSnapshot(t, body).Notification)

	resp, body = doRequest(t, app, jsonRequest(t, http.MethodPost, base+"/reset", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, models.StateIdle, decodeSnapshot(t, body).State)

	resp, _ = doRequest(t, app, jsonRequest(t, http.MethodDelete, base, nil))
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, 0, registry.Len())

	resp, _ = doRequest(t, app, jsonRequest(t, http.MethodGet, base, nil))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestContactFormHandler_CreateDefaultsToContactOrigin(t *testing.T) {
	app, _ := newContactApp(&stubSubmitter{})

	resp, body := doRequest(t, app, jsonRequest(t, http.MethodPost, "/api/v1/contact/forms", nil))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, models.OriginContact, decodeSnapshot(t, body).Origin)
}

func TestContactFormHandler_AsyncSubmit(t *testing.T) {
	submitter := &stubSubmitter{release: make(chan struct{})}
	app, registry := newContactApp(submitter)
	f, err := registry.Mount(models.OriginContact)
	require.NoError(t, err)
	path := "/api/v1/contact/forms/" + f.ID() + "/submit"

	req := jsonRequest(t, http.MethodPost, path, validPayload())
	req.Header.Set("Prefer", "respond-async")
	resp, body := doRequest(t, app, req)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	snapshot := decodeSnapshot(t, body)
	require.Equal(t, models.StateSubmitting, snapshot.State)
	require.True(t, snapshot.SubmitDisabled)

	resp, body = doRequest(t, app, jsonRequest(t, http.MethodPost, path, validPayload()))
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, models.StateSubmitting, decodeSnapshot(t, body).State)

	close(submitter.release)
	require.Eventually(t, func() bool { return f.State() == models.StateSubmitted }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, submitter.callCount())
}

func TestContactFormHandler_UnknownForm(t *testing.T) {
	app, _ := newContactApp(&stubSubmitter{})

	resp, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/api/v1/contact/forms/missing/submit", validPayload()))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, jsonRequest(t, http.MethodDelete, "/api/v1/contact/forms/missing", nil))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestContactFormHandler_StreamRequiresUpgrade(t *testing.T) {
	app, registry := newContactApp(&stubSubmitter{})
	f, err := registry.Mount(models.OriginContact)
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/contact/forms/"+f.ID()+"/ws", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestContactFormHandler_StreamEmitsTransitions(t *testing.T) {
	submitter := &stubSubmitter{release: make(chan struct{})}
	app, registry := newContactApp(submitter)
	f, err := registry.Mount(models.OriginContact)
	require.NoError(t, err)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/contact/forms/" + f.ID() + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	readSnapshot := func() dto.FormSnapshot {
		var snapshot dto.FormSnapshot
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&snapshot))
		return snapshot
	}

	require.Equal(t, models.StateIdle, readSnapshot().State)

	_, err = f.SubmitAsync(context.Background(), dto.ContactRequest{Name: "Jo", Email: "jo@x.com", Message: "Hello there, I need help."})
	require.NoError(t, err)
	require.Equal(t, models.StateSubmitting, readSnapshot().State)

	close(submitter.release)
	done := readSnapshot()
	require.Equal(t, models.StateSubmitted, done.State)
	require.Equal(t, "ref-1", done.ReferenceID)

	require.NoError(t, registry.Unmount(f.ID()))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestContactFormHandler_StreamPingsWhileSnapshotsFlow(t *testing.T) {
	registry := form.NewRegistry(validation.NewContactRules(nil), &stubSubmitter{}, time.Minute, 0, zerolog.Nop())
	app := fiber.New()
	handler.NewContactFormHandler(registry, zerolog.Nop()).
		WithKeepAlive(100 * time.Millisecond).
		Register(app.Group("/api/v1/contact"))
	f, err := registry.Mount(models.OriginContact)
	require.NoError(t, err)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/contact/forms/" + f.ID() + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// A snapshot every 20ms keeps the stream busier than the ping interval.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = f.Reset()
			}
		}
	}()
	defer close(stop)

	deadline := time.Now().Add(700 * time.Millisecond)
	require.NoError(t, conn.SetReadDeadline(deadline))
	snapshots := 0
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		snapshots++
	}

	require.Greater(t, snapshots, 10)
	require.GreaterOrEqual(t, int(pings.Load()), 3)
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
