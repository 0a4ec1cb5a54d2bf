package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/complyscan/pkg/engine"
)

type memBackend struct {
	entries map[string][]byte
	getErr  error
	putErr  error
}

func newMemBackend() *memBackend {
	return &memBackend{entries: map[string][]byte{}}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	if b.getErr != nil {
		return nil, false, b.getErr
	}
	data, ok := b.entries[key]
	return data, ok, nil
}

func (b *memBackend) Put(_ context.Context, key string, data []byte) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.entries[key] = data
	return nil
}

func target(path, content string) engine.ScanTarget {
	return engine.ScanTarget{
		Path:        path,
		Language:    "Terraform",
		Content:     []byte(content),
		Fingerprint: engine.Fingerprint([]byte(content)),
	}
}

func TestStoreAndLookup(t *testing.T) {
	c := New(newMemBackend(), 0, nil)
	tgt := target("main.tf", `resource "aws_instance" "x" {}`)
	findings := []engine.Finding{{File: "main.tf", Line: 1, Severity: engine.SevHigh, Description: "x"}}

	c.Store(context.Background(), tgt, findings)

	got, hit, err := c.Lookup(context.Background(), tgt)
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].Description != "x" {
		t.Errorf("unexpected findings: %+v", got)
	}
}

func TestLookupMissOnContentChange(t *testing.T) {
	c := New(newMemBackend(), 0, nil)
	tgt := target("main.tf", "a = 1")
	c.Store(context.Background(), tgt, nil)

	changed := target("main.tf", "a = 2")
	if _, hit, _ := c.Lookup(context.Background(), changed); hit {
		t.Error("a single byte change must invalidate the entry")
	}
}

func TestLookupFailsOpenOnBackendError(t *testing.T) {
	backend := newMemBackend()
	backend.getErr = errors.New("store unreachable")
	c := New(backend, 0, nil)

	_, hit, err := c.Lookup(context.Background(), target("a.tf", "x = 1"))
	if hit {
		t.Error("backend error must read as a miss")
	}
	if err == nil {
		t.Error("a dead backend must be reported to the caller")
	}
}

func TestStoreSwallowsBackendError(t *testing.T) {
	backend := newMemBackend()
	backend.putErr = errors.New("store unreachable")
	c := New(backend, 0, nil)

	// Must not panic or block; the scan continues without a cache record.
	c.Store(context.Background(), target("a.tf", "x = 1"), nil)
}

func TestStaleEntryIsMiss(t *testing.T) {
	c := New(newMemBackend(), time.Hour, nil)
	tgt := target("main.tf", "a = 1")
	c.Store(context.Background(), tgt, nil)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, hit, err := c.Lookup(context.Background(), tgt); hit || err != nil {
		t.Error("entry past the horizon must read as a plain miss")
	}
}

func TestKeyDependsOnPathAndFingerprint(t *testing.T) {
	if Key("a.tf", "f1") == Key("b.tf", "f1") {
		t.Error("different paths must produce different keys")
	}
	if Key("a.tf", "f1") == Key("a.tf", "f2") {
		t.Error("different fingerprints must produce different keys")
	}
}
