package ai

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/models"
)

func newTestClaudeProvider(t *testing.T, settings *fakeSettings) *ClaudeProvider {
	t.Helper()
	p, err := NewClaudeProvider(&common.ClaudeConfig{
		Model:          "claude-3-5-haiku-latest",
		MaxTokens:      1024,
		Timeout:        "5s",
		RateLimit:      "1ms",
		ClientLoadWait: "10ms",
	}, settings, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewClaudeProvider() failed: %v", err)
	}
	return p
}

func TestCaptureSessionStoresTokenForSignIn(t *testing.T) {
	settings := &fakeSettings{}
	p := newTestClaudeProvider(t, settings)
	ctx := context.Background()

	if p.IsSignedIn(ctx) {
		t.Fatal("no session should exist before capture")
	}
	if err := p.SignIn(ctx); err == nil {
		t.Fatal("SignIn() before capture should fail")
	}

	err := p.CaptureSession(ctx, models.SessionCredential{
		AccessToken: "sess-abc",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CaptureSession() failed: %v", err)
	}

	if settings.Get().ClaudeSessionToken == "" {
		t.Error("captured session not written to settings")
	}
	if !p.IsSignedIn(ctx) {
		t.Error("IsSignedIn() should see the captured session")
	}
	if err := p.SignIn(ctx); err != nil {
		t.Errorf("SignIn() after capture failed: %v", err)
	}
}

func TestCaptureSessionRejectsEmptyToken(t *testing.T) {
	settings := &fakeSettings{}
	p := newTestClaudeProvider(t, settings)

	if err := p.CaptureSession(context.Background(), models.SessionCredential{}); err == nil {
		t.Error("CaptureSession() without an access token should fail")
	}
	if settings.Get().ClaudeSessionToken != "" {
		t.Error("rejected credential must not be persisted")
	}
}

func TestCaptureSessionRejectsExpiredCredential(t *testing.T) {
	settings := &fakeSettings{}
	p := newTestClaudeProvider(t, settings)

	err := p.CaptureSession(context.Background(), models.SessionCredential{
		AccessToken: "sess-old",
		ExpiresAt:   time.Now().Add(-time.Hour),
	})
	if err == nil {
		t.Error("CaptureSession() with an expired credential should fail")
	}
}

func TestSignOutClearsStoredSession(t *testing.T) {
	settings := &fakeSettings{}
	p := newTestClaudeProvider(t, settings)
	ctx := context.Background()

	if err := p.CaptureSession(ctx, models.SessionCredential{AccessToken: "sess-abc"}); err != nil {
		t.Fatalf("CaptureSession() failed: %v", err)
	}
	if err := p.SignIn(ctx); err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}

	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() failed: %v", err)
	}
	if settings.Get().ClaudeSessionToken != "" {
		t.Error("sign-out must clear the stored session token")
	}
	if p.IsSignedIn(ctx) {
		t.Error("IsSignedIn() should be false after sign-out")
	}
}
