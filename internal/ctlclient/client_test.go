package ctlclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/honeytrace/honeypot/internal/api"
	"github.com/honeytrace/honeypot/internal/capture"
	"github.com/honeytrace/honeypot/internal/lifecycle"
	"github.com/honeytrace/honeypot/internal/model"
)

type stubController struct {
	startErr error
	running  bool
}

func (s *stubController) Start(context.Context) (lifecycle.Result, error) {
	if s.startErr != nil {
		return lifecycle.Result{}, s.startErr
	}
	s.running = true
	return lifecycle.Result{Status: lifecycle.StatusSuccess, Message: "Honeypot started successfully"}, nil
}

func (s *stubController) Stop(context.Context) lifecycle.Result {
	s.running = false
	return lifecycle.Result{Status: lifecycle.StatusSuccess, Message: "Honeypot stopped successfully"}
}

func (s *stubController) Restart(ctx context.Context) (lifecycle.Result, error) {
	return s.Start(ctx)
}

func (s *stubController) Status() lifecycle.Status {
	return lifecycle.Status{
		Status:  "RUNNING",
		Running: s.running,
		Services: map[string]lifecycle.ServiceStatus{
			"ssh": {Active: s.running, Port: 2222, Description: "SSH Honeypot Service"},
		},
	}
}

func (s *stubController) Health(context.Context) lifecycle.Health {
	return lifecycle.Health{Status: "UP", RecordsTotal: 12}
}

func newServer(t *testing.T, token string, ctl api.Controller) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api.NewRouter(token, ctl, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, "tok", &stubController{})
	c, err := New(srv.URL+"/", "tok")
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Start(ctx)
	if err != nil || res.Status != lifecycle.StatusSuccess {
		t.Fatalf("Start = %+v, %v", res, err)
	}
	st, err := c.Status(ctx)
	if err != nil || !st.Running || st.Services["ssh"].Port != 2222 {
		t.Fatalf("Status = %+v, %v", st, err)
	}
	h, err := c.Health(ctx)
	if err != nil || h.RecordsTotal != 12 {
		t.Fatalf("Health = %+v, %v", h, err)
	}
	if res, err := c.Stop(ctx); err != nil || res.Status != lifecycle.StatusSuccess {
		t.Fatalf("Stop = %+v, %v", res, err)
	}
}

func TestClientSurfacesErrorEnvelope(t *testing.T) {
	ctx := context.Background()
	startErr := &capture.StartError{Kind: capture.PortUnavailable, Protocol: model.ProtocolSSH, Addr: ":22", Err: io.EOF}
	srv := newServer(t, "tok", &stubController{startErr: startErr})

	c, _ := New(srv.URL, "tok")
	_, err := c.Restart(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus != http.StatusConflict || apiErr.Code != "PORT_UNAVAILABLE" {
		t.Fatalf("err = %#v", err)
	}

	anon, _ := New(srv.URL, "")
	_, err = anon.Start(ctx)
	if !errors.As(err, &apiErr) || apiErr.Code != "UNAUTHORIZED" {
		t.Fatalf("err = %v", err)
	}
}

func TestWaitReady(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"UP","records_total":1}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := c.WaitReady(ctx)
	if err != nil || h.Status != "UP" {
		t.Fatalf("WaitReady = %+v, %v", h, err)
	}

	short, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	down, _ := New("127.0.0.1:1", "")
	if _, err := down.WaitReady(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewRejectsEmptyURL(t *testing.T) {
	if _, err := New("  ", ""); err == nil {
		t.Fatal("expected error")
	}
	c, _ := New("localhost:18080", "")
	if c.baseURL != "http://localhost:18080" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}
