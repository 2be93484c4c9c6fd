package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrExpired      = errors.New("token has expired")
	ErrMalformed    = errors.New("token is malformed")
	ErrBadSignature = errors.New("token signature is invalid")
)

// Codec signs and verifies bearer token strings. It is stateless; every
// token carries subject, jti and expiry, signed with HS256 and a
// process-wide secret.
type Codec struct {
	secret []byte
}

func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

// Encode mints a token for subject with a fresh random jti.
func (c *Codec) Encode(subject string, ttl time.Duration) (signed, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	now := time.Now().UTC()
	expiresAt = now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err = t.SignedString(c.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, expiresAt, nil
}

// Decode verifies signature and expiry and returns subject and jti. The
// signing method is pinned to HS256; the token's own alg header is never
// trusted.
func (c *Codec) Decode(signed string) (subject, jti string, err error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", "", ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", "", ErrBadSignature
		default:
			return "", "", ErrMalformed
		}
	}
	if !t.Valid || claims.Subject == "" || claims.ID == "" {
		return "", "", ErrMalformed
	}
	return claims.Subject, claims.ID, nil
}
