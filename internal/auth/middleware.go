package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/model"
)

// contextKey is an unexported type used for context keys in this package, so
// no other package can read or shadow the values stored here.
type contextKey string

const (
	choirKey   contextKey = "choir"
	adminKey   contextKey = "admin"
	requestKey contextKey = "tokenSource"
)

// TokenResolver looks up the choir member currently holding a token.
// It returns an error matching apperror.ErrUnauthorized when nobody does.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*model.Choir, error)
}

// RejectionRecorder is told why the member gate refused a request:
// "no_token" or "unknown_token". *metrics.Metrics satisfies it.
type RejectionRecorder interface {
	GateRejected(reason string)
}

// RequireMember gates every route below it on a valid member token.
//
// The token is taken from the first of TokenSources that carries one. A
// request without a token gets "You must login first."; a token nobody holds
// gets "You are not authorized to access this resource.". Both are 401 and
// the downstream handler never runs. On success the member is stored in the
// request context. rec may be nil.
func RequireMember(resolver TokenResolver, rec RejectionRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	reject := func(reason string) {
		if rec != nil {
			rec.GateRejected(reason)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source, ok := ExtractToken(r)
			if !ok {
				reject("no_token")
				writeAuthError(w, http.StatusUnauthorized, apperror.MsgLoginFirst)
				return
			}

			choir, err := resolver.ResolveToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, apperror.ErrUnauthorized) {
					reject("unknown_token")
					logger.Debug("member token rejected",
						slog.String("source", source),
						slog.String("path", r.URL.Path),
					)
					writeAuthError(w, http.StatusUnauthorized, apperror.MsgNotAuthorized)
					return
				}
				logger.Error("resolving member token", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "An internal error occurred")
				return
			}

			ctx := context.WithValue(r.Context(), choirKey, choir)
			ctx = context.WithValue(ctx, requestKey, source)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates the admin API on a bearer JWT issued by AdminTokens.
func RequireAdmin(tokens *AdminTokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, http.StatusUnauthorized, apperror.MsgLoginFirst)
				return
			}

			subject, err := tokens.Validate(raw)
			if err != nil {
				logger.Debug("admin token rejected", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusUnauthorized, apperror.MsgNotAuthorized)
				return
			}

			ctx := context.WithValue(r.Context(), adminKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ChoirFromContext returns the member resolved by RequireMember.
func ChoirFromContext(ctx context.Context) (*model.Choir, bool) {
	c, ok := ctx.Value(choirKey).(*model.Choir)
	return c, ok && c != nil
}

// AdminFromContext returns the subject of the admin token, if any.
func AdminFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(adminKey).(string)
	return s, ok && s != ""
}

// TokenSourceFromContext returns which source the member token came from.
func TokenSourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestKey).(string)
	return s
}

type authErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authErrorBody{Success: false, Message: message})
}
