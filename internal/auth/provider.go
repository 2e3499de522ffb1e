// Package auth identifies the author behind a request.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/model"
)

var authLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

var ErrNoUser = errors.New("no authenticated user")

type AuthProvider interface {
	WithHeaderAuthorization() func(http.Handler) http.Handler

	// CurrentUser returns the user the middleware attached to ctx.
	CurrentUser(ctx context.Context) (model.UserID, error)

	// EnforceUser writes 401 and returns an error when the request has no user.
	EnforceUser(w http.ResponseWriter, r *http.Request) (model.UserID, error)

	HandleWebhookUser(w http.ResponseWriter, r *http.Request)
}

func enforce(p AuthProvider, w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	userID, err := p.CurrentUser(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Unauthorized access attempt")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", err
	}
	return userID, nil
}
