package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRotatingWriterCreatesDatedFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "onelab.log")

	w, err := NewRotatingWriter(base, 1024)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	dated := filepath.Join(dir, "onelab-"+today+".log")
	data, err := os.ReadFile(dated)
	if err != nil {
		t.Fatalf("read dated file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("dated file content = %q", data)
	}

	// The configured path resolves to the live file.
	resolved, err := os.ReadFile(base)
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if !strings.Contains(string(resolved), "hello") && !strings.Contains(string(resolved), dated) {
		t.Fatalf("pointer content = %q", resolved)
	}
}

func TestRotatingWriterSizeRollover(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "onelab.log")

	w, err := NewRotatingWriter(base, 10)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		if _, err := w.Write([]byte("0123456789\n")); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	today := time.Now().UTC().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(dir, "onelab-"+today+"-2.log")); err != nil {
		t.Fatalf("rollover file missing: %v", err)
	}
}

func TestRotatingWriterDiscard(t *testing.T) {
	w, err := NewRotatingWriter("-", 0)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	if _, err := w.Write([]byte("dropped")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewLoggerWithFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewLogger("[onelabd] ", filepath.Join(dir, "onelab.log"), 1024)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if closer == nil {
		t.Fatal("no closer returned for file logger")
	}
	logger.Printf("started")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, "onelab-"+today+".log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Fatalf("log content = %q", data)
	}
}
