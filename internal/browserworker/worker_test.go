package browserworker

import (
	"context"
	"os"
	"testing"
	"time"
)

func skipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
}

func skipIfCI(t *testing.T) {
	if os.Getenv("CI") == "true" {
		t.Skip("skipping browser integration test in CI environment")
	}
}

func setupWorker(t *testing.T) (*Worker, func()) {
	t.Helper()
	w, err := New(Options{Headless: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w, func() { _ = w.Close() }
}

func TestKeyInputCodesCoversPressEnterAndClear(t *testing.T) {
	for _, key := range []string{"Enter", "Escape", "Tab"} {
		if _, ok := keyInputCodes[key]; !ok {
			t.Errorf("keyInputCodes missing %q", key)
		}
	}
}

func TestWorkerIntegrationNavigateAndScreenshot(t *testing.T) {
	skipIfShort(t)
	skipIfCI(t)

	w, cleanup := setupWorker(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.Navigate(ctx, "https://example.com"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	png, err := w.Screenshot(ctx)
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if len(png) < 8 {
		t.Fatal("screenshot too small to be a valid PNG")
	}
	header := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	for i, b := range header {
		if png[i] != b {
			t.Fatal("screenshot is not a valid PNG")
		}
	}
}

func TestWorkerIntegrationHittables(t *testing.T) {
	skipIfShort(t)
	skipIfCI(t)

	w, cleanup := setupWorker(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.Navigate(ctx, "https://example.com"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	hittables, err := w.Hittables(ctx)
	if err != nil {
		t.Fatalf("Hittables: %v", err)
	}
	for _, h := range hittables {
		if h.Role == "" {
			t.Error("expected non-empty role")
		}
	}
}

func TestWorkerIntegrationScroll(t *testing.T) {
	skipIfShort(t)
	skipIfCI(t)

	w, cleanup := setupWorker(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.Navigate(ctx, "https://example.com"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := w.ScrollUniversal(ctx, "down", 200); err != nil {
		t.Fatalf("ScrollUniversal down: %v", err)
	}
	if err := w.ScrollUniversal(ctx, "up", 100); err != nil {
		t.Fatalf("ScrollUniversal up: %v", err)
	}
}

func TestWorkerIntegrationWaitRespectsContext(t *testing.T) {
	skipIfShort(t)
	skipIfCI(t)

	w, cleanup := setupWorker(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Wait(ctx, time.Second); err == nil {
		t.Fatal("expected cancelled context to abort Wait")
	}
}
