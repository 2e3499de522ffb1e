package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"

	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/model"
)

const clerkSessionCookie = "__session"

// ClerkAuthProvider trusts session tokens issued by Clerk and keeps the users
// table in sync through Clerk's user webhooks.
type ClerkAuthProvider struct {
	db db.Db

	cookieExtractor clerkhttp.AuthorizationOption
}

func NewClerkAuthProvider(clerkKey string, database db.Db) *ClerkAuthProvider {
	clerk.SetKey(clerkKey)

	return &ClerkAuthProvider{
		db: database,
		cookieExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			if h := r.Header.Get("Authorization"); h != "" {
				return strings.TrimPrefix(h, "Bearer ")
			}
			cookie, err := r.Cookie(clerkSessionCookie)
			if err != nil || cookie == nil {
				return ""
			}
			return cookie.Value
		}),
	}
}

func (c *ClerkAuthProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	return clerkhttp.WithHeaderAuthorization(c.cookieExtractor)
}

func (c *ClerkAuthProvider) CurrentUser(ctx context.Context) (model.UserID, error) {
	claims, ok := clerk.SessionClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return "", ErrNoUser
	}
	return model.UserID(claims.Subject), nil
}

func (c *ClerkAuthProvider) EnforceUser(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	return enforce(c, w, r)
}

type userEvent struct {
	Data clerk.User `json:"data"`
	Type string     `json:"type"`
}

func (c *ClerkAuthProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload userEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		authLogger.Warn().Err(err).Msg("Error decoding event payload")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	usr := payload.Data
	l := authLogger.With().Str("event", payload.Type).Str("user_id", usr.ID).Logger()
	l.Info().Msg("User webhook received")

	switch payload.Type {
	case "user.created", "user.updated":
		if usr.ID == "" {
			http.Error(w, "Missing user id", http.StatusBadRequest)
			return
		}

		var username, email any
		if len(usr.ExternalAccounts) > 0 {
			username = usr.ExternalAccounts[0].Username
		}
		if usr.Username != nil {
			username = *usr.Username
		}
		if len(usr.EmailAddresses) > 0 {
			email = usr.EmailAddresses[0].EmailAddress
		}

		_, err := c.db.Exec(ctx,
			`INSERT INTO users (id, username, email) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET username = excluded.username, email = excluded.email`,
			usr.ID, username, email)
		if err != nil {
			l.Error().Err(err).Msg("Error saving user")
			http.Error(w, "Error saving user", http.StatusInternalServerError)
			return
		}

		l.Info().Msg("User saved")
		if payload.Type == "user.created" {
			w.WriteHeader(http.StatusCreated)
		} else {
			w.WriteHeader(http.StatusNoContent)
		}

	case "user.deleted":
		if _, err := c.db.Exec(ctx, "DELETE FROM users WHERE id = ?", usr.ID); err != nil {
			l.Error().Err(err).Msg("Error deleting user")
			http.Error(w, "Error deleting user", http.StatusInternalServerError)
			return
		}

		l.Info().Msg("User deleted")
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, fmt.Sprintf("Invalid event type %q", payload.Type), http.StatusBadRequest)
	}
}
