package middleware_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ngabopay/ussdpilot/pkg/adapters/memory"
	"github.com/ngabopay/ussdpilot/pkg/persistence/middleware"
	"github.com/ngabopay/ussdpilot/pkg/ports"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
	if err != nil {
		t.Fatal(err)
	}
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	result := paidResult("pii-session")

	if err := secureStore.Save(ctx, result); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The caller's result is not modified.
	if !strings.Contains(result.ScreenLog[1], "0772123456") {
		t.Error("Middleware modified original result in memory!")
	}

	stored, err := underlyingStore.Load(ctx, "pii-session")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	for _, s := range append([]string{stored.Code, stored.Message}, stored.ScreenLog...) {
		if strings.Contains(s, "0772123456") {
			t.Errorf("Phone number should be masked, got: %q", s)
		}
	}
	if stored.ScreenLog[0] != "Enter PIN" {
		t.Errorf("Unrelated text changed: %q", stored.ScreenLog[0])
	}
	if stored.TransactionID != "ABC123" {
		t.Errorf("Transaction ID should be kept, got %q", stored.TransactionID)
	}
	if !strings.Contains(stored.Message, "50000 UGX") {
		t.Errorf("Short numbers should be kept, got %q", stored.Message)
	}
}

func TestChain_RedactsBeforeEncrypting(t *testing.T) {
	underlyingStore := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
	if err != nil {
		t.Fatal(err)
	}
	store := middleware.Chain(underlyingStore, pii, encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}))

	ctx := context.Background()
	if err := store.Save(ctx, paidResult("chained")); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.Load(ctx, "chained")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(loaded.Message, "0772123456") {
		t.Errorf("Expected masked message after decrypt, got %q", loaded.Message)
	}
	if loaded.TransactionID != "ABC123" {
		t.Errorf("Transaction ID lost: %q", loaded.TransactionID)
	}
}

func TestChain_StoreContract(t *testing.T) {
	pii, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
	if err != nil {
		t.Fatal(err)
	}
	enc := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunResultStoreContract(t, middleware.Chain(memory.NewStore(), pii, enc))
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewPIIMiddleware([]string{"("}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}
