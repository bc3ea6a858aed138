package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/model"
)

func testRecord(id string) model.Record {
	return model.NewRecord(id, "http", "Пахота зяби", time.Date(2024, 10, 12, 8, 0, 0, 0, time.UTC),
		model.NewClassification(model.ClassProbabilities{0.1, 0.9}))
}

func TestOpenDisabled(t *testing.T) {
	tr, err := Open(config.AuditConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != nil {
		t.Fatal("expected nil trail when no sink is configured")
	}
}

func TestOpenBadDetail(t *testing.T) {
	_, err := Open(config.AuditConfig{File: filepath.Join(t.TempDir(), "a.ndjson"), Detail: "verbose", BufferSize: 8})
	if err == nil {
		t.Fatal("expected error for unknown detail level")
	}
}

func TestFileTrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "classify.ndjson")
	tr, err := Open(config.AuditConfig{File: path, MaxSizeMB: 1, MaxBackups: 2, BufferSize: 16, Detail: "minimal"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := tr.Write(context.Background(), testRecord(id)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec model.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if rec.Message != "" {
			t.Errorf("minimal detail should strip message, got %q", rec.Message)
		}
		ids = append(ids, rec.RequestID)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("expected records a,b,c in order, got %v", ids)
	}
	if tr.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", tr.Dropped())
	}
}

func TestWebhookTrail(t *testing.T) {
	var mu sync.Mutex
	var auth string
	var envs []Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		json.NewDecoder(r.Body).Decode(&env)
		mu.Lock()
		auth = r.Header.Get("Authorization")
		envs = append(envs, env)
		mu.Unlock()
	}))
	defer srv.Close()

	tr, err := Open(config.AuditConfig{WebhookURL: srv.URL, WebhookToken: "hook-secret", BufferSize: 16, WebhookBatch: 10})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tr.Rotate(); err != nil {
		t.Fatalf("rotate without file should be a no-op, got %v", err)
	}
	if err := tr.Write(context.Background(), testRecord("w-1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if auth != "Bearer hook-secret" {
		t.Errorf("expected bearer token header, got %q", auth)
	}
	if len(envs) != 1 || envs[0].Count != 1 || envs[0].Records[0].RequestID != "w-1" {
		t.Fatalf("expected one envelope carrying w-1, got %+v", envs)
	}
	if envs[0].Version != config.Version {
		t.Errorf("envelope version = %q, want %q", envs[0].Version, config.Version)
	}
	if envs[0].Records[0].Message != "Пахота зяби" {
		t.Errorf("full detail should keep the message, got %+v", envs[0].Records[0])
	}
}

func TestWebhookTrailCountsLostRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr, err := Open(config.AuditConfig{WebhookURL: srv.URL, BufferSize: 16, WebhookBatch: 10})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		tr.Write(context.Background(), testRecord(id))
	}
	if err := tr.Close(); err == nil {
		t.Fatal("expected the rejected delivery to surface on close")
	}
	if tr.Dropped() != 3 {
		t.Errorf("Dropped = %d, want 3", tr.Dropped())
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classify.ndjson")
	tr, err := Open(config.AuditConfig{File: path, MaxSizeMB: 1, MaxBackups: 3, BufferSize: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tr.Write(context.Background(), testRecord("before"))
	// Close drains; reopen a new trail to rotate deterministically.
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	tr, err = Open(config.AuditConfig{File: path, MaxSizeMB: 1, MaxBackups: 3, BufferSize: 4})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := tr.Rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected a rotated backup next to the live file, got %d entries", len(entries))
	}
}
