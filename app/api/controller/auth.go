package controller

import (
	"net/http"
	"strings"

	"github.com/invote/invote/pkg/utils"
)

const apiKeyPrefix = "Api-Key "

// ValidateAPIKey checks the "Authorization: Api-Key <key>" header against
// the configured shared secret.
func (c *Controller) ValidateAPIKey(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, apiKeyPrefix) {
		return false
	}
	return utils.SecretMatches(c.App.Config.APIKey, strings.TrimPrefix(header, apiKeyPrefix))
}

// RequireAPIKey middleware
func (c *Controller) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.ValidateAPIKey(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "Not authorised!")
	})
}
