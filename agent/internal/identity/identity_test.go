package identity

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func stubHostname(t *testing.T, name string, err error) {
	t.Helper()
	orig := hostname
	hostname = func() (string, error) { return name, err }
	t.Cleanup(func() { hostname = orig })
}

func TestResolveAgentID(t *testing.T) {
	stubHostname(t, "desk-07", nil)

	tests := []struct {
		in, want string
	}{
		{"", "desk-07"},
		{"auto", "desk-07"},
		{"AUTO", "desk-07"},
		{"  ", "desk-07"},
		{"branch-12/pos 3", "branch-12/pos 3"},
	}
	for _, tc := range tests {
		if got := ResolveAgentID(tc.in); got != tc.want {
			t.Errorf("ResolveAgentID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveAgentID_HostnameError(t *testing.T) {
	stubHostname(t, "", errors.New("boom"))
	if got := ResolveAgentID("auto"); got != "unknown" {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"abc":             "***",
		"abcdef":          "***",
		"abcdefg":         "abc***efg",
		"sk_live_1234567": "sk_***567",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
	if s := (Identity{AgentID: "a", AgentKey: "secret-value"}).String(); strings.Contains(s, "secret-value") {
		t.Errorf("String() leaks key: %q", s)
	}
}

type fakeValidator struct {
	err  error
	seen string
}

func (f *fakeValidator) Validate(_ context.Context, key string) error {
	f.seen = key
	return f.err
}

type fakeSaver struct {
	saved map[string]string
}

func (f *fakeSaver) Save(u map[string]string) error {
	f.saved = u
	return nil
}

func TestEnroll_SavesValidatedKey(t *testing.T) {
	v := &fakeValidator{}
	s := &fakeSaver{}
	if err := Enroll(context.Background(), v, s, "AGENT_KEY", "  key-123 "); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if v.seen != "key-123" {
		t.Errorf("validated %q", v.seen)
	}
	if s.saved["AGENT_KEY"] != "key-123" {
		t.Errorf("saved %v", s.saved)
	}
}

func TestEnroll_RejectedKeyNotSaved(t *testing.T) {
	rejected := errors.New("rejected")
	s := &fakeSaver{}
	err := Enroll(context.Background(), &fakeValidator{err: rejected}, s, "AGENT_KEY", "bad")
	if !errors.Is(err, rejected) {
		t.Fatalf("Enroll err = %v, want wrapped rejection", err)
	}
	if s.saved != nil {
		t.Errorf("rejected key was saved: %v", s.saved)
	}
}

func TestEnroll_EmptyKey(t *testing.T) {
	v := &fakeValidator{}
	if err := Enroll(context.Background(), v, &fakeSaver{}, "AGENT_KEY", " "); err == nil {
		t.Fatal("expected error for empty key")
	}
	if v.seen != "" {
		t.Error("empty key should not reach the validator")
	}
}

func TestPrompt_NonTerminal(t *testing.T) {
	var out bytes.Buffer
	key, err := Prompt(strings.NewReader("  typed-key  \n"), &out)
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if key != "typed-key" {
		t.Errorf("key = %q", key)
	}
	if !strings.Contains(out.String(), "Agent key") {
		t.Errorf("prompt text = %q", out.String())
	}

	if _, err := Prompt(strings.NewReader("\n"), &out); err == nil {
		t.Error("expected error for empty input")
	}
}
