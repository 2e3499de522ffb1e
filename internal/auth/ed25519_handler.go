package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/routes"
)

type challengeResponse struct {
	Challenge string `json:"challenge"`
}

func writeChallenge(w http.ResponseWriter, challenge []byte) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.Header().Set(config.HCacheControl, "no-store")
	_ = json.NewEncoder(w).Encode(challengeResponse{
		Challenge: base64.StdEncoding.EncodeToString(challenge),
	})
}

// Ed25519ChallengeHandler serves the current challenge on GET and rotates it
// on POST.
func Ed25519ChallengeHandler(provider *Ed25519AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := zerolog.Ctx(r.Context())
		switch r.Method {
		case http.MethodGet:
			writeChallenge(w, provider.Challenge())

		case http.MethodPost:
			if err := provider.RefreshChallenge(); err != nil {
				l.Error().Err(err).Msg("Failed to refresh challenge")
				http.Error(w, config.ErrRefreshChallengeFmt, http.StatusInternalServerError)
				return
			}
			writeChallenge(w, provider.Challenge())

		default:
			http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		}
	}
}

// Ed25519VerifyHandler checks the signature in the auth header and stores it
// in a cookie for later requests.
func Ed25519VerifyHandler(provider *Ed25519AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
			return
		}

		if r.Header.Get(provider.headerName) == "" {
			http.Error(w, config.ErrAuthHeaderRequired, http.StatusUnauthorized)
			return
		}

		signature, err := provider.signatureFromRequest(r)
		if err != nil || len(signature) == 0 {
			authLogger.Error().Err(err).Msg("Failed to decode signature")
			http.Error(w, config.ErrInvalidSignatureFormat, http.StatusUnauthorized)
			return
		}

		if !provider.Verify(signature) {
			authLogger.Warn().Msg("Signature verification failed")
			http.Error(w, config.ErrInvalidSignature, http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     config.CookieAuthToken,
			Value:    base64.StdEncoding.EncodeToString(signature),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   r.TLS != nil,
			MaxAge:   3600 * 24, // 24 hours
		})

		w.WriteHeader(http.StatusOK)
	}
}

// RegisterEd25519AuthRoutes registers the challenge and verify endpoints.
func RegisterEd25519AuthRoutes(mux *http.ServeMux, provider *Ed25519AuthProvider) {
	mux.HandleFunc(routes.AuthChallenge, Ed25519ChallengeHandler(provider))
	mux.HandleFunc(routes.AuthVerify, Ed25519VerifyHandler(provider))
}
