package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/auth"
	"github.com/sakif/choirhub/internal/model"
)

// Authenticator is the member session API the auth endpoints drive.
// *service.AuthService satisfies it.
type Authenticator interface {
	Login(ctx context.Context, code string) (*model.Choir, string, error)
	Validate(ctx context.Context, token string) (*model.Choir, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler serves login, validate-token and logout.
//
// None of the three sits behind the member gate: login has no token yet,
// and validate-token and logout report their own outcome for any token.
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(a Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: a, logger: logger}
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    model.Profile `json:"user"`
}

// SessionResponse is returned by validate-token and logout.
type SessionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	User    *model.Profile `json:"user,omitempty"`
}

// loginCode reads "code" from a JSON or form body. A body that cannot be
// parsed yields "", which fails like any other wrong code.
func loginCode(r *http.Request) string {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return ""
		}
		return body.Code
	}
	return r.FormValue("code")
}

// HandleLogin exchanges a login code for a member token.
//
// HTTP: POST /api/login
// REQUEST BODY: {"code": "11916339"} or code=11916339
//
// A wrong or missing code answers 401 {"message":"Invalid credentials"}.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	choir, token, err := h.auth.Login(r.Context(), loginCode(r))
	if err != nil {
		if apperror.IsAuthFailure(err) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": apperror.MsgInvalidCredentials})
			return
		}
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    choir.Profile(),
	})
}

// HandleValidateToken reports whether the presented token is live.
//
// HTTP: POST /api/validate-token
func (h *AuthHandler) HandleValidateToken(w http.ResponseWriter, r *http.Request) {
	token, _, _ := auth.ExtractToken(r)

	choir, err := h.auth.Validate(r.Context(), token)
	if err != nil {
		if apperror.IsAuthFailure(err) {
			writeJSON(w, http.StatusUnauthorized, SessionResponse{Message: apperror.MsgInvalidToken})
			return
		}
		writeError(w, h.logger, err)
		return
	}

	profile := choir.Profile()
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Message: "Token is valid", User: &profile})
}

// HandleLogout revokes the presented token. It succeeds for an unknown or
// missing token too.
//
// HTTP: POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, _, _ := auth.ExtractToken(r)

	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Message: "Logout successful"})
}
