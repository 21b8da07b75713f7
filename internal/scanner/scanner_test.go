package scanner

import (
	"context"
	"testing"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]Item, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner("html"))

	got, err := reg.Resolve("html")
	if err != nil {
		t.Fatalf("resolve html: %v", err)
	}
	if got.Name() != "html" {
		t.Fatalf("unexpected scanner: %s", got.Name())
	}

	if _, err := reg.Resolve("rss"); err == nil {
		t.Fatalf("expected error for unregistered scanner")
	}

	var zero Registry
	zero.Register(namedScanner("late"))
	if _, err := zero.Resolve("late"); err != nil {
		t.Fatalf("zero registry should accept registrations: %v", err)
	}
}
