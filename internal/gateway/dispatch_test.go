package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"messenger/infrastructure"
	"messenger/internal/events"
)

func newDispatchGateway(t *testing.T, handlers map[string]handlerFunc) *Gateway {
	t.Helper()
	return &Gateway{
		metrics:  NewMetrics(prometheus.NewRegistry()),
		log:      zaptest.NewLogger(t),
		handlers: handlers,
	}
}

func TestDispatchUnknownOpReturnsValidationError(t *testing.T) {
	g := newDispatchGateway(t, map[string]handlerFunc{})
	c := newClient("alice", nil)

	g.dispatch(c, events.Frame{Op: "no:such:op"})

	got := drain(c)
	if len(got) != 1 {
		t.Fatalf("expected 1 response, got %d", len(got))
	}
	if got[0].Event != events.EventError || got[0].Error.Kind != string(infrastructure.KindValidation) {
		t.Fatalf("unexpected response: %+v", got[0])
	}
}

func TestDispatchUnknownOpsShareOneMetricLabel(t *testing.T) {
	g := newDispatchGateway(t, map[string]handlerFunc{})
	c := newClient("alice", nil)

	// Client-chosen op strings must not mint one metric series each.
	for i := 0; i < 5; i++ {
		g.dispatch(c, events.Frame{Op: fmt.Sprintf("made-up:op:%d", i)})
	}

	if series := testutil.CollectAndCount(g.metrics.opsHandled); series != 1 {
		t.Fatalf("expected a single ops series, got %d", series)
	}
	got := testutil.ToFloat64(g.metrics.opsHandled.WithLabelValues(opUnknown, "error"))
	if got != 5 {
		t.Fatalf("expected 5 unknown-op errors, got %v", got)
	}
}

func TestDispatchTranslatesHandlerError(t *testing.T) {
	g := newDispatchGateway(t, map[string]handlerFunc{
		"boom": func(context.Context, string, json.RawMessage) (string, any, error) {
			return "", nil, infrastructure.ErrNotFoundOrUnauthorized
		},
	})
	c := newClient("alice", nil)

	g.dispatch(c, events.Frame{Op: "boom"})

	got := drain(c)
	if len(got) != 1 || got[0].Error.Kind != string(infrastructure.KindNotFound) {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestDispatchSurvivesHandlerPanic(t *testing.T) {
	g := newDispatchGateway(t, map[string]handlerFunc{
		"panic": func(context.Context, string, json.RawMessage) (string, any, error) {
			panic("handler bug")
		},
		"ok": func(context.Context, string, json.RawMessage) (string, any, error) {
			return events.EventSuccess, "fine", nil
		},
	})
	c := newClient("alice", nil)

	g.dispatch(c, events.Frame{Op: "panic"})
	g.dispatch(c, events.Frame{Op: "ok"})

	got := drain(c)
	if len(got) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(got))
	}
	if got[0].Error == nil || got[0].Error.Kind != string(infrastructure.KindUpstream) {
		t.Fatalf("panic should map to upstream failure: %+v", got[0])
	}
	if got[0].Error.Message != "internal error" {
		t.Fatalf("panic detail leaked: %q", got[0].Error.Message)
	}
	if !got[1].OK {
		t.Fatalf("connection should keep serving after a panic: %+v", got[1])
	}
}

func TestDispatchPassesIdentityAndPayload(t *testing.T) {
	var gotUser string
	var gotPayload string
	g := newDispatchGateway(t, map[string]handlerFunc{
		"echo": func(_ context.Context, userID string, payload json.RawMessage) (string, any, error) {
			gotUser = userID
			var p struct {
				Value string `json:"value"`
			}
			if err := decode(payload, &p); err != nil {
				return "", nil, err
			}
			gotPayload = p.Value
			return events.EventSuccess, p.Value, nil
		},
	})
	c := newClient("alice", nil)

	g.dispatch(c, events.Frame{Op: "echo", Payload: json.RawMessage(`{"value":"hi"}`)})

	if gotUser != "alice" || gotPayload != "hi" {
		t.Fatalf("handler saw user=%q payload=%q", gotUser, gotPayload)
	}
	got := drain(c)
	if len(got) != 1 || !got[0].OK {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	var dst struct{}
	err := decode(json.RawMessage(`{not json`), &dst)
	if infrastructure.KindOf(err) != infrastructure.KindValidation {
		t.Fatalf("malformed payload should be a validation error, got %v", err)
	}
	if err := decode(nil, &dst); err != nil {
		t.Fatalf("empty payload should be fine, got %v", err)
	}
}
