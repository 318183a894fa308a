package conversation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildImageInjectionMessageReadsFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("fake-png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	msg, ok, err := BuildImageInjectionMessage([]PendingImage{{Path: "a.png", Detail: "auto", RemainingViews: 1}}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(msg.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(msg.Images))
	}
	if msg.Images[0].MIMEType != "image/png" {
		t.Fatalf("expected image/png, got %s", msg.Images[0].MIMEType)
	}
	if msg.Role != RoleUser {
		t.Fatalf("expected user role, got %s", msg.Role)
	}
}

func TestBuildImageInjectionMessageEmptyQueue(t *testing.T) {
	_, ok, err := BuildImageInjectionMessage(nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for empty queue")
	}
}

func TestBuildImageInjectionMessageSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	msg, ok, err := BuildImageInjectionMessage([]PendingImage{{Path: "missing.png", RemainingViews: 1}}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true (noted as missing)")
	}
	if len(msg.Images) != 0 {
		t.Fatalf("expected 0 images, got %d", len(msg.Images))
	}
}
