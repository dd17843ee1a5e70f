package session

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"finboard/internal/state"
)

func TestTokenClaims(t *testing.T) {
	st := state.NewMemoryStore()
	store := NewStore(nil, st, nil)

	if _, err := store.TokenClaims(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("TokenClaims() without token error = %v, want ErrNotAuthenticated", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "7",
		"email": "ana@example.com",
	})
	signed, err := token.SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatal(err)
	}
	state.SetJSON(st, state.KeyAccessToken, signed)

	claims, err := store.TokenClaims()
	if err != nil {
		t.Fatalf("TokenClaims() error = %v", err)
	}
	if claims["sub"] != "7" || claims["email"] != "ana@example.com" {
		t.Errorf("claims = %+v", claims)
	}

	// A malformed token reports an error rather than empty claims.
	state.SetJSON(st, state.KeyAccessToken, "not-a-jwt")
	if _, err := store.TokenClaims(); err == nil {
		t.Error("TokenClaims() with malformed token succeeded")
	}
}
