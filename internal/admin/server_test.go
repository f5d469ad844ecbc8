package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keshon/disbot/internal/cmdsync"
	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/pkg/cmd"
)

func newServer(t *testing.T) (*Server, *gateway.MemoryCatalog) {
	t.Helper()
	reg := cmd.NewRegistry()
	for _, d := range []cmd.Descriptor{
		{Definition: cmd.Definition{Name: "hello", Description: "hi", Options: []cmd.Option{{Name: "who", Type: cmd.OptionUser}}}, Handler: cmd.Static(cmd.Text("x"))},
		{Definition: cmd.Definition{Name: "rules", Description: "rules"}, Scope: cmd.Guild("42"), Handler: cmd.Static(cmd.Text("x"))},
	} {
		if err := reg.Register(d); err != nil {
			t.Fatal(err)
		}
	}
	cat := gateway.NewMemoryCatalog()
	coord := cmdsync.New(reg, cat)
	t.Cleanup(coord.Close)
	return New(":0", reg, coord, WithPending(func() []string { return []string{"invocation:1"} })), cat
}

func do(t *testing.T, s *Server, method, target string, into any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	if into != nil {
		if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
			t.Fatalf("%s %s: decode: %v", method, target, err)
		}
	}
	return rec.Code
}

func TestHealthAndCommands(t *testing.T) {
	s, _ := newServer(t)

	var health map[string]any
	if code := do(t, s, http.MethodGet, "/healthz", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("healthz: %d %v", code, health)
	}

	var global []commandView
	do(t, s, http.MethodGet, "/commands", &global)
	if len(global) != 1 || global[0].Name != "hello" || global[0].Options[0].Type != "user" {
		t.Errorf("unexpected global commands %+v", global)
	}
	var guild []commandView
	do(t, s, http.MethodGet, "/commands?guild=42", &guild)
	if len(guild) != 1 || guild[0].Scope != "guild:42" {
		t.Errorf("unexpected guild commands %+v", guild)
	}

	var jobs map[string][]string
	do(t, s, http.MethodGet, "/jobs", &jobs)
	if len(jobs["pending"]) != 1 {
		t.Errorf("unexpected jobs %v", jobs)
	}

	if code := do(t, s, http.MethodGet, "/sync", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET /sync = %d, want 405", code)
	}
}

func TestSync(t *testing.T) {
	s, cat := newServer(t)

	var body struct {
		Reports []reportView `json:"reports"`
		Error   string       `json:"error"`
	}
	if code := do(t, s, http.MethodPost, "/sync?guild=42", &body); code != http.StatusOK {
		t.Fatalf("sync guild: %d %s", code, body.Error)
	}
	if len(body.Reports) != 1 || len(body.Reports[0].Added) != 1 {
		t.Errorf("unexpected report %+v", body.Reports)
	}

	body.Reports = nil
	if code := do(t, s, http.MethodPost, "/sync", &body); code != http.StatusOK {
		t.Fatalf("sync all: %d %s", code, body.Error)
	}
	if len(body.Reports) != 2 {
		t.Errorf("expected reports for global and guild:42, got %+v", body.Reports)
	}
	if got := len(cat.Applied()); got != 2 {
		t.Errorf("expected 2 remote changes in total, got %d", got)
	}
}

func TestSync_Failure(t *testing.T) {
	s, cat := newServer(t)
	cat.BeforeFetch = func(context.Context, cmd.Scope) error {
		return &gateway.AuthError{Err: errors.New("401")}
	}

	var body map[string]any
	if code := do(t, s, http.MethodPost, "/sync?guild=42", &body); code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", code)
	}
	if body["error"] == nil {
		t.Error("expected an error message")
	}
}
