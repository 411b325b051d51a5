package msgcat

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := c.Render("outcome.white_wins", map[string]any{"Method": "checkmate"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "White wins by checkmate." {
		t.Fatalf("got %q", got)
	}
	got, err = c.Render("outcome.draw", map[string]any{"Method": ""})
	if err != nil || got != "Draw." {
		t.Fatalf("got %q err=%v", got, err)
	}
	for _, key := range []string{"protocol.InvalidMove", "protocol.Unauthorized", "protocol.InvalidTurn", "protocol.Deserialization"} {
		if !c.Has(key) {
			t.Fatalf("missing %s", key)
		}
	}
}

func TestRenderErrors(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Render("nope.nothing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Render("move.illegal", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.Text("nope.nothing", nil); got != "nope.nothing" {
		t.Fatalf("fallback=%q", got)
	}
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("move:\n  illegal: \"nope {{.Move}}\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.Text("move.illegal", map[string]any{"Move": "e5"}); got != "nope e5" {
		t.Fatalf("got %q", got)
	}
	if got := c.Text("move.game_over", nil); got != "The game is over." {
		t.Fatalf("default lost: %q", got)
	}
}

func TestDuplicateOverrideKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("move:\n  illegal: x\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("expected error for numeric leaf")
	}
}
