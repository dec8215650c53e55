package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const subject = "admin"

var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies HS256 bearer tokens for the admin user.
type Issuer struct {
	secret       []byte
	passwordHash []byte
	ttl          time.Duration
}

func NewIssuer(secret, passwordHash string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:       []byte(secret),
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
	}
}

// CheckPassword compares password with the configured bcrypt hash.
func (i *Issuer) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(i.passwordHash, []byte(password)) == nil
}

// Sign issues a token valid for the configured ttl.
func (i *Issuer) Sign(now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyHeader validates an "Authorization: Bearer <token>" header value.
func (i *Issuer) VerifyHeader(header string) error {
	if header == "" {
		return errors.New("empty Authorization header")
	}

	accessToken, ok := strings.CutPrefix(header, "Bearer ")
	accessToken = strings.TrimSpace(accessToken)
	if !ok || accessToken == "" {
		return errors.New("invalid Authorization format")
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub != subject {
		return fmt.Errorf("%w: unexpected subject", ErrInvalidToken)
	}
	return nil
}
