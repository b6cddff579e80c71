// Package auth is the identity-provider boundary: it turns a bearer
// credential into a user id, nothing more. Token issuance lives in the
// identity service; this side only verifies.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Typed failures so transports can collapse every verification problem
// into one unauthorized response without string matching.
var (
	ErrUnsupportedAlg = errors.New("unsupported signing algorithm")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token has no subject")
)

type JWTValidator struct {
	alg    string
	key    interface{}
	parser *jwt.Parser
}

func NewJWTValidator(pubKeyPath, alg, secret string) (*JWTValidator, error) {
	key, err := verificationKey(alg, pubKeyPath, secret)
	if err != nil {
		return nil, err
	}
	return &JWTValidator{
		alg:    alg,
		key:    key,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{alg})),
	}, nil
}

func verificationKey(alg, pubKeyPath, secret string) (interface{}, error) {
	switch alg {
	case "RS256":
		return loadRSAPublicKey(pubKeyPath)
	case "HS256":
		if secret == "" {
			return nil, fmt.Errorf("%w: HS256 requires a secret", ErrUnsupportedAlg)
		}
		return []byte(secret), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, alg)
	}
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

// Validate returns the subject (user id) of a well-signed token.
func (j *JWTValidator) Validate(token string) (string, error) {
	tok, err := j.parser.Parse(token, func(*jwt.Token) (interface{}, error) {
		return j.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrMissingSubject
	}
	return sub, nil
}
