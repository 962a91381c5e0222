package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonathan/resume-screener/internal/server/middleware"
)

// WebhookIssuer is the issuer claim of webhook tokens
const WebhookIssuer = "resume-screener"

// Claims of a webhook bearer token. Subject names the sender, usually the
// mail provider.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256 webhook tokens signed with a shared
// secret
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates a JWTService for secret
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret), now: time.Now}
}

// GenerateToken issues a token for subject. A zero ttl issues a token that
// never expires.
func (s *JWTService) GenerateToken(subject string, ttl time.Duration) (string, error) {
	issued := jwt.NewNumericDate(s.now())
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    WebhookIssuer,
		Subject:   subject,
		IssuedAt:  issued,
		NotBefore: issued,
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issued.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign webhook token: %w", err)
	}
	return signed, nil
}

// tokenFailures maps parser sentinels to the messages callers see
var tokenFailures = []struct {
	err error
	msg string
}{
	{jwt.ErrTokenSignatureInvalid, "invalid token signature"},
	{jwt.ErrTokenExpired, "token expired"},
	{jwt.ErrTokenNotValidYet, "token not valid yet"},
	{jwt.ErrTokenMalformed, "malformed token"},
}

// ValidateToken verifies signature, algorithm, issuer and lifetime
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(WebhookIssuer),
		jwt.WithTimeFunc(s.now),
	)
	var claims Claims
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		for _, f := range tokenFailures {
			if errors.Is(err, f.err) {
				return nil, fmt.Errorf("%s: %w", f.msg, err)
			}
		}
		return nil, fmt.Errorf("rejected token: %w", err)
	}
	return &claims, nil
}

// AsTokenValidator adapts s to the auth middleware
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return middleware.TokenValidatorFunc(func(tokenString string) (middleware.SubjectGetter, error) {
		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}
