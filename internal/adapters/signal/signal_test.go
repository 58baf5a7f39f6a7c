package signal

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/livestage/internal/app"
	"github.com/dkeye/livestage/internal/core"
)

func TestTrySendBackpressure(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	if err := c.TrySend(core.Frame("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.TrySend(core.Frame("b")); !errors.Is(err, ErrBackpressure) {
		t.Fatalf("full buffer err = %v", err)
	}
	c.closed = true
	if err := c.TrySend(core.Frame("c")); !errors.Is(err, ErrClosed) {
		t.Fatalf("closed err = %v", err)
	}
}

func TestCheckOrigin(t *testing.T) {
	ctl := NewEventsController(app.NewRegistry(), nil, 0, time.Second, []string{"https://app.example"})
	cases := map[string]bool{
		"":                    true,
		"https://app.example": true,
		"https://evil.test":   false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest("GET", "/api/ws/events", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := ctl.upgrader.CheckOrigin(r); got != want {
			t.Errorf("CheckOrigin(%q) = %v, want %v", origin, got, want)
		}
	}

	wild := NewEventsController(app.NewRegistry(), nil, 0, 0, []string{"*"})
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Origin", "https://whatever.test")
	if !wild.upgrader.CheckOrigin(r) {
		t.Error("wildcard must accept any origin")
	}
	if wild.pingPeriod() != 54*time.Second {
		t.Errorf("default ping period = %v", wild.pingPeriod())
	}
}
