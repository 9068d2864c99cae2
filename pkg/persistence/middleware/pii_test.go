package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/canvasbuilder/pkg/adapters/memory"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	// Setup
	underlyingStore := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
	if err != nil {
		t.Fatalf("NewPIIMiddleware failed: %v", err)
	}
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	state := domain.NewSessionState(sessionID, now).
		WithExchange("notify jane.doe@example.com when approved", "Adding a notification node.", now).
		WithExchange("and call +1 (555) 010-9999", "Adding a task node.", now)

	// 1. Save
	if err := secureStore.Save(ctx, sessionID, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify In-Memory State is NOT MODIFIED (Immutability check)
	if state.History[0].Content != "notify jane.doe@example.com when approved" {
		t.Error("Middleware modified original state in memory!")
	}

	// 2. Load from Underlying Store (Should be masked)
	storedState, err := underlyingStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}

	if got := storedState.History[0].Content; got != "notify *** when approved" {
		t.Errorf("E-mail should be masked, got: %q", got)
	}
	if got := storedState.History[2].Content; got != "and call ***" {
		t.Errorf("Phone number should be masked, got: %q", got)
	}
	if got := storedState.History[1].Content; got != "Adding a notification node." {
		t.Errorf("Text without PII shouldn't change, got: %q", got)
	}
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewPIIMiddleware([]string{"("}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestWrap_Order(t *testing.T) {
	underlyingStore := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if err != nil {
		t.Fatal(err)
	}

	// Masking runs before sealing, so the decrypted session is masked.
	store := middleware.Wrap(underlyingStore, pii, enc)
	ctx := context.Background()
	state := domain.NewSessionState("s1", now).WithExchange("mail ops@example.com", "ok", now)
	if err := store.Save(ctx, "s1", state); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.LastUserMessage(); got != "mail ***" {
		t.Errorf("Expected masked message, got %q", got)
	}
}
