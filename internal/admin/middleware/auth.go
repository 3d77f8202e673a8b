// Package middleware provides HTTP middleware for the admin surface including
// authentication, capability checks, CORS, and rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/logger"
)

type contextKey string

const apiKeyInfoKey contextKey = "api_key_info"

// UnauthorizedMessage is the message of every rejected AJAX call.
const UnauthorizedMessage = "Unauthorized access"

// AJAXPrefix is the path prefix of dashboard AJAX actions.
const AJAXPrefix = "/admin/ajax/"

// KeyValidator resolves a raw API key.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*apikey.KeyInfo, error)
}

// Auth returns middleware that validates API keys from the request.
// Keys can be provided via Authorization: Bearer <key>, X-API-Key header,
// or the api_key query parameter. Health and public page routes are exempt.
func Auth(validator KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				reject(w, r, http.StatusUnauthorized, "missing api key")
				return
			}

			info, err := validator.Validate(r.Context(), key)
			if err != nil {
				switch {
				case errors.Is(err, apikey.ErrInvalidKey):
					reject(w, r, http.StatusUnauthorized, "invalid api key")
				case errors.Is(err, apikey.ErrExpiredKey):
					reject(w, r, http.StatusUnauthorized, "expired api key")
				default:
					logger.FromContext(r.Context()).Error("api key validation failed", "error", err)
					writeError(w, http.StatusInternalServerError, "authentication error")
				}
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability rejects authenticated requests whose key lacks
// capability. Public routes pass through.
func RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) || capability == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !GetKeyInfo(r.Context()).Can(capability) {
				reject(w, r, http.StatusForbidden, "missing capability "+capability)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetKeyInfo retrieves the validated KeyInfo from the request context.
func GetKeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(apiKeyInfoKey).(*apikey.KeyInfo)
	return info
}

// IsAJAX reports whether r is a dashboard AJAX action.
func IsAJAX(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, AJAXPrefix)
}

func isPublic(path string) bool {
	return strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/pages/")
}

// extractAPIKey reads the API key from the request in priority order:
// Authorization: Bearer header, X-API-Key header, api_key query parameter.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

// reject answers AJAX actions with the dashboard failure envelope and
// everything else with a JSON error.
func reject(w http.ResponseWriter, r *http.Request, status int, message string) {
	if IsAJAX(r) {
		WriteAJAXFailure(w, http.StatusOK, UnauthorizedMessage)
		return
	}
	writeError(w, status, message)
}

// WriteAJAXFailure writes {"success":false,"data":{"message":...}}.
func WriteAJAXFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"data":    map[string]string{"message": message},
	})
}

// writeError writes a JSON error response to the client.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
