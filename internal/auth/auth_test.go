package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

type memTokenStore struct {
	tokens map[string]*models.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]*models.RefreshToken{}}
}

func (m *memTokenStore) AddRefreshToken(t *models.RefreshToken) error {
	m.tokens[t.Token] = t
	return nil
}

func (m *memTokenStore) GetRefreshToken(token string) (*models.RefreshToken, error) {
	t, ok := m.tokens[token]
	if !ok {
		return nil, errs.NotFoundf("refresh token not found")
	}
	return t, nil
}

func (m *memTokenStore) RevokeRefreshToken(token string) error {
	t, ok := m.tokens[token]
	if !ok {
		return errs.NotFoundf("refresh token not found")
	}
	t.Revoked = true
	return nil
}

func TestHashAndVerifyPassword(t *testing.T) {
	h, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(h, "s3cret-pass") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(h, "wrong") {
		t.Fatalf("wrong password accepted")
	}
	if _, err := HashPassword(""); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty password: expected ErrInvalidInput, got %v", err)
	}
}

func TestLongPasswordTruncation(t *testing.T) {
	long := strings.Repeat("a", 100)
	h, err := HashPassword(long)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	// bytes past 72 do not participate
	if !VerifyPassword(h, strings.Repeat("a", 72)+"bbbb") {
		t.Fatalf("truncation mismatch between hash and verify")
	}
}

func TestIssueVerifyRotate(t *testing.T) {
	ts := NewTokens("test-secret", newMemTokenStore())
	pair, err := ts.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.TokenType != "bearer" || pair.ExpiresIn != int(AccessTTL.Seconds()) {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	uid, err := ts.VerifyAccess(pair.AccessToken)
	if err != nil || uid != "user-1" {
		t.Fatalf("VerifyAccess: uid=%q err=%v", uid, err)
	}
	// refresh token is not an access token
	if _, err := ts.VerifyAccess(pair.RefreshToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("refresh used as access: expected ErrUnauthorized, got %v", err)
	}

	next, err := ts.Rotate(pair.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation returned the same refresh token")
	}
	// old token is single-use
	if _, err := ts.Rotate(pair.RefreshToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("reused refresh: expected ErrUnauthorized, got %v", err)
	}
}

func TestRevokeBlocksRotation(t *testing.T) {
	ts := NewTokens("test-secret", newMemTokenStore())
	pair, _ := ts.Issue("user-2")
	if err := ts.Revoke(pair.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := ts.Rotate(pair.RefreshToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("rotate after revoke: expected ErrUnauthorized, got %v", err)
	}
}

func TestExpiredAccessRejected(t *testing.T) {
	ts := NewTokens("test-secret", newMemTokenStore())
	base := time.Now()
	ts.now = func() time.Time { return base }
	pair, _ := ts.Issue("user-3")

	ts.now = func() time.Time { return base.Add(AccessTTL + time.Minute) }
	if _, err := ts.VerifyAccess(pair.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expired access: expected ErrUnauthorized, got %v", err)
	}
	// refresh still inside its window
	if _, err := ts.Rotate(pair.RefreshToken); err != nil {
		t.Fatalf("refresh within window: %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	ts := NewTokens("test-secret", newMemTokenStore())
	pair, _ := ts.Issue("user-4")
	other := NewTokens("other-secret", newMemTokenStore())
	if _, err := other.VerifyAccess(pair.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("cross-secret token: expected ErrUnauthorized, got %v", err)
	}
}
