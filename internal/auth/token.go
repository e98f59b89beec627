package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenSigner mints and verifies the HS256 bearer tokens used by the API
// and the push channel.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

func (s *TokenSigner) Sign(userID uint64, now time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify returns the user id baked into a valid, unexpired token.
func (s *TokenSigner) Verify(token string) (uint64, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "parse token")
	}
	if !parsed.Valid || c.UserID == 0 {
		return 0, errors.New("invalid token")
	}
	return c.UserID, nil
}
