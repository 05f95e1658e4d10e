// Package auth issues and verifies credentials: bcrypt password hashes and
// HS256 access/refresh token pairs with refresh rotation.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"labmatch/internal/errs"
	"labmatch/internal/models"
)

const (
	bcryptCost = 12
	// bcrypt ignores input past 72 bytes; truncate explicitly so hashing and
	// verification agree on long passwords.
	bcryptMaxLen = 72

	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errs.InvalidInputf("password required")
	}
	b := []byte(password)
	if len(b) > bcryptMaxLen {
		b = b[:bcryptMaxLen]
	}
	h, err := bcrypt.GenerateFromPassword(b, bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func VerifyPassword(hash, password string) bool {
	b := []byte(password)
	if len(b) > bcryptMaxLen {
		b = b[:bcryptMaxLen]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), b) == nil
}

// TokenStore is the slice of the store the token service needs.
type TokenStore interface {
	AddRefreshToken(*models.RefreshToken) error
	GetRefreshToken(token string) (*models.RefreshToken, error)
	RevokeRefreshToken(token string) error
}

// Tokens signs and verifies JWTs and tracks refresh tokens for rotation.
type Tokens struct {
	secret []byte
	store  TokenStore
	now    func() time.Time
}

func NewTokens(secret string, store TokenStore) *Tokens {
	return &Tokens{secret: []byte(secret), store: store, now: time.Now}
}

type claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

func (t *Tokens) sign(userID, typ string, ttl time.Duration) (string, error) {
	now := t.now().UTC()
	c := claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        randomID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

// Pair is an access/refresh token pair returned on login and refresh.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Issue mints a fresh pair and records the refresh token for later rotation.
func (t *Tokens) Issue(userID string) (*Pair, error) {
	access, err := t.sign(userID, "access", AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(userID, "refresh", RefreshTTL)
	if err != nil {
		return nil, err
	}
	now := t.now().UTC()
	if err := t.store.AddRefreshToken(&models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(RefreshTTL),
	}); err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(AccessTTL.Seconds()),
	}, nil
}

func (t *Tokens) parse(token, wantType string) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	if c.Type != wantType {
		return "", fmt.Errorf("%w: wrong token type", errs.ErrUnauthorized)
	}
	return c.Subject, nil
}

// VerifyAccess returns the user ID carried by a valid access token.
func (t *Tokens) VerifyAccess(token string) (string, error) {
	return t.parse(token, "access")
}

// Rotate exchanges a refresh token for a new pair, revoking the old token.
// A revoked or expired token is rejected even if the signature checks out.
func (t *Tokens) Rotate(refresh string) (*Pair, error) {
	userID, err := t.parse(refresh, "refresh")
	if err != nil {
		return nil, err
	}
	rec, err := t.store.GetRefreshToken(refresh)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown refresh token", errs.ErrUnauthorized)
	}
	if !rec.Valid(t.now().UTC()) {
		return nil, fmt.Errorf("%w: refresh token revoked or expired", errs.ErrUnauthorized)
	}
	if err := t.store.RevokeRefreshToken(refresh); err != nil {
		return nil, err
	}
	return t.Issue(userID)
}

// Revoke invalidates a refresh token on logout.
func (t *Tokens) Revoke(refresh string) error {
	if _, err := t.parse(refresh, "refresh"); err != nil {
		return err
	}
	return t.store.RevokeRefreshToken(refresh)
}

func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
