package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// timeNow is swapped in tests that exercise age validation.
var timeNow = time.Now

// TokenClaims decodes the stored access token without verifying its
// signature. Display and debugging only: authentication decisions never
// depend on these claims, expiry included.
func (s *Store) TokenClaims() (jwt.MapClaims, error) {
	token := s.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}
	return claims, nil
}
