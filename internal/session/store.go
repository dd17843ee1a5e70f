// Package session owns the client-side session: the access token, the
// authenticated user, and the cached profile. All durable state lives in a
// state.Store; every write emits both auth and profile change notifications.
package session

import (
	"context"
	"net/http"
	"strings"

	"finboard/internal/core"
	"finboard/internal/httpapi"
	"finboard/internal/log"
	"finboard/internal/state"
)

// ErrNotAuthenticated is returned when an operation requires a session and
// no access token is stored. It carries status 401 like a rejected call.
var ErrNotAuthenticated = httpapi.NewAPIError(http.StatusUnauthorized, "user not authenticated")

type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	RegisterRequest struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		Birthdate string `json:"birthdate"`
		CPF       string `json:"cpf"`
		Password  string `json:"password"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email"`
	}

	ResetPasswordRequest struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	authResponse struct {
		AccessToken string        `json:"accessToken"`
		User        core.AuthUser `json:"user"`
	}
)

// Store manages the session against the auth endpoints and the state store.
type Store struct {
	api    *httpapi.Client
	state  state.Store
	logger *log.Logger

	authUpdated    notifier
	profileUpdated notifier
}

func NewStore(api *httpapi.Client, st state.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Store{
		api:    api,
		state:  st,
		logger: logger.WithComponent(log.ComponentSession),
	}
}

// AccessToken returns the stored token, or "" when no session exists.
func (s *Store) AccessToken() string {
	token, ok := state.GetJSON[string](s.state, state.KeyAccessToken)
	if !ok || strings.TrimSpace(token) == "" {
		return ""
	}
	return token
}

// IsAuthenticated reports token presence. No expiry or signature check is
// performed client-side; an expired token is discovered via a 401 response.
func (s *Store) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// StoredUser returns the persisted user record, or nil when absent.
func (s *Store) StoredUser() *core.AuthUser {
	user, ok := state.GetJSON[core.AuthUser](s.state, state.KeyUser)
	if !ok || user.ID == 0 {
		return nil
	}
	return &user
}

// StoredProfile returns the persisted profile, or nil when absent.
func (s *Store) StoredProfile() *core.UserProfile {
	profile, ok := state.GetJSON[core.UserProfile](s.state, state.KeyProfile)
	if !ok || profile.ID == 0 {
		return nil
	}
	return &profile
}

// SetStoredProfile persists the profile and refreshes the denormalized user
// record from it.
func (s *Store) SetStoredProfile(profile core.UserProfile) {
	if err := state.SetJSON(s.state, state.KeyProfile, profile); err != nil {
		s.logger.Warn("Failed to persist profile", log.FieldError, err.Error())
		return
	}
	user := core.AuthUser{ID: profile.ID, Name: profile.Name, Email: profile.Email}
	if err := state.SetJSON(s.state, state.KeyUser, user); err != nil {
		s.logger.Warn("Failed to persist user record", log.FieldError, err.Error())
	}
	s.profileUpdated.emit()
	s.authUpdated.emit()
}

// Login exchanges credentials for a session and persists it. Any previously
// cached profile is discarded.
func (s *Store) Login(ctx context.Context, req LoginRequest) (core.AuthUser, error) {
	if err := req.Validate(); err != nil {
		return core.AuthUser{}, err
	}

	resp, err := httpapi.Do[authResponse](ctx, s.api, "/auth/login", httpapi.RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	})
	if err != nil {
		return core.AuthUser{}, err
	}

	if err := state.SetJSON(s.state, state.KeyAccessToken, resp.AccessToken); err != nil {
		return core.AuthUser{}, err
	}
	if err := state.SetJSON(s.state, state.KeyUser, resp.User); err != nil {
		return core.AuthUser{}, err
	}
	_ = s.state.Delete(state.KeyProfile)

	s.authUpdated.emit()
	s.profileUpdated.emit()

	s.logger.InfoContext(ctx, "Session established",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, resp.User.ID)

	return resp.User, nil
}

// Register creates a backend account. No session is established; the caller
// must log in separately.
func (s *Store) Register(ctx context.Context, req RegisterRequest) (core.AuthUser, error) {
	if err := req.Validate(); err != nil {
		return core.AuthUser{}, err
	}

	user, err := httpapi.Do[core.AuthUser](ctx, s.api, "/auth/register", httpapi.RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	})
	if err != nil {
		return core.AuthUser{}, err
	}

	s.logger.InfoContext(ctx, "Account registered",
		log.FieldOperation, log.OpRegister,
		log.FieldUserID, user.ID)

	return user, nil
}

// FetchCurrentUser refreshes the stored user record from the backend.
func (s *Store) FetchCurrentUser(ctx context.Context) (core.AuthUser, error) {
	token := s.AccessToken()
	if token == "" {
		return core.AuthUser{}, ErrNotAuthenticated
	}

	user, err := httpapi.Do[core.AuthUser](ctx, s.api, "/auth/me", httpapi.RequestOptions{
		Token: token,
	})
	if err != nil {
		return core.AuthUser{}, err
	}

	if err := state.SetJSON(s.state, state.KeyUser, user); err != nil {
		return core.AuthUser{}, err
	}
	s.authUpdated.emit()

	return user, nil
}

// Logout clears the session. Idempotent: logging out without a session still
// emits both notifications.
func (s *Store) Logout() {
	_ = s.state.Delete(state.KeyAccessToken)
	_ = s.state.Delete(state.KeyUser)
	_ = s.state.Delete(state.KeyProfile)

	s.authUpdated.emit()
	s.profileUpdated.emit()

	s.logger.Info("Session cleared", log.FieldOperation, log.OpLogout)
}

// RequestPasswordReset asks the backend to send a reset code.
func (s *Store) RequestPasswordReset(ctx context.Context, req ForgotPasswordRequest) (MessageResponse, error) {
	return httpapi.Do[MessageResponse](ctx, s.api, "/auth/forgot-password/request", httpapi.RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	})
}

// ResetPassword applies a reset code together with the new password.
func (s *Store) ResetPassword(ctx context.Context, req ResetPasswordRequest) (MessageResponse, error) {
	return httpapi.Do[MessageResponse](ctx, s.api, "/auth/forgot-password/reset", httpapi.RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	})
}

// OnAuthUpdated registers a listener for session changes. The returned
// function unsubscribes.
func (s *Store) OnAuthUpdated(fn Listener) func() {
	return s.authUpdated.subscribe(fn)
}

// OnProfileUpdated registers a listener for profile changes.
func (s *Store) OnProfileUpdated(fn Listener) func() {
	return s.profileUpdated.subscribe(fn)
}

func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return core.ErrEmptyEmail
	}
	if r.Password == "" {
		return core.ErrShortPassword
	}
	return nil
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return core.ErrEmptyName
	}
	if strings.TrimSpace(r.Email) == "" {
		return core.ErrEmptyEmail
	}
	if err := core.ValidateCPF(r.CPF); err != nil {
		return err
	}
	if err := core.ValidateBirthdate(r.Birthdate, timeNow()); err != nil {
		return err
	}
	if len(r.Password) < 8 {
		return core.ErrShortPassword
	}
	return nil
}
