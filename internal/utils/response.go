package utils

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// NewSessionID returns a random unique session token.
func NewSessionID() string { return uuid.NewString() }

// DefaultUsername is handed to participants that join without a display name.
func DefaultUsername() string {
	return "User_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
