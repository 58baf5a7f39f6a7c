// Package captoken signs and verifies the capability token that binds an
// identity to a room for follow-up stage-control calls.
//
// Tokens are HS256 JWTs carrying {identity, room_name}. With a zero TTL no
// time claims are written, so a token is a pure function of the secret and
// the claim pair and stays valid for the life of the secret.
package captoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/livestage/internal/domain"
)

const minSecretLen = 16

var ErrWeakSecret = errors.New("capability secret must be at least 16 bytes")

type claims struct {
	Identity string `json:"identity"`
	RoomName string `json:"room_name"`
	jwt.RegisteredClaims
}

// Codec issues and verifies capability tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Codec)

// WithTTL adds iat/exp claims; expired tokens fail verification.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) { c.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints a token for identity in room.
func (c *Codec) Issue(room domain.RoomName, identity domain.Identity) (string, error) {
	cl := claims{Identity: string(identity), RoomName: string(room)}
	if c.ttl > 0 {
		now := c.now()
		cl.IssuedAt = jwt.NewNumericDate(now)
		cl.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign capability token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and claims of token.
func (c *Codec) Verify(token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Session{}, domain.Unauthenticated("no authorization token found")
	}

	var cl claims
	_, err := jwt.ParseWithClaims(token, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.Session{}, mapJWTError(err)
	}
	if strings.TrimSpace(cl.Identity) == "" || strings.TrimSpace(cl.RoomName) == "" {
		return domain.Session{}, domain.InvalidToken("token is missing identity or room_name")
	}
	return domain.Session{
		Identity: domain.Identity(cl.Identity),
		RoomName: domain.RoomName(cl.RoomName),
	}, nil
}

// FromHeader extracts the credential from an Authorization header value of
// the form "Token <jwt>" or "Bearer <jwt>".
func FromHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", domain.Unauthenticated("no authorization header found")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", domain.Unauthenticated("no authorization header found")
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token), nil
	default:
		return "", domain.Unauthenticated("unsupported authorization scheme")
	}
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		// Not a JWT at all: treat like a missing credential.
		return domain.Unauthenticated("token is malformed")
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.InvalidToken("token is expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return domain.InvalidToken("token signature is invalid")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.InvalidToken("token alg is invalid")
	default:
		return domain.WrapError(domain.KindInvalidToken, "invalid token", err)
	}
}
