package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
)

type cached interface {
	Cached() (*oauth2.Token, error)
}

// HTTPHandler reports the state of the cached connect token.
type HTTPHandler struct {
	tok cached
}

// NewHTTPHandler creates an HTTP handler for token status.
func NewHTTPHandler(tok cached) *HTTPHandler {
	return &HTTPHandler{tok: tok}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t, err := h.tok.Cached()
	if errors.Is(err, apperr.ErrTokenNotSet) {
		http.Error(w, "Token not found", http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Token: %s, expires: %s", MaskLeft(t.AccessToken), t.Expiry.Format(time.RFC3339))
}
