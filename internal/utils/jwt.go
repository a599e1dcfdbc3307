package utils // package utils provides helpers for bearer tokens

import (
	"errors"  // sentinel errors for token validation
	"strconv" // numeric subject formatting
	"time"    // expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for signing and parsing tokens
)

// ErrInvalidToken is returned when a token cannot be verified or lacks the
// claims the API relies on.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Identity is what the API needs to know about a caller: the token subject
// and the role claim.
type Identity struct {
	Subject string
	Role    string
}

// NewAccessToken builds and signs an HS256 JWT carrying sub, role, exp and
// iat. Tokens are issued by the auth service; this function exists for
// tooling and tests that need a token the API will accept.
func NewAccessToken(secret, subject, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 token and returns the caller identity.
// The subject may be encoded as a JSON string or number; numbers are
// rendered in decimal so "42" and 42 name the same user.
func ParseAccessToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC is accepted; anything else would let a caller pick the key.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{Subject: subjectString(claims["sub"])}
	id.Role, _ = claims["role"].(string)
	return id, nil
}

func subjectString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s != float64(int64(s)) {
			return ""
		}
		return strconv.FormatInt(int64(s), 10)
	default:
		return ""
	}
}
