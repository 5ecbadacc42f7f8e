package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/pkordes/grumeter/internal/domain"
)

// writeError writes the API's error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.Envelope[any]{
		Status:  status,
		Success: false,
		Code:    code,
		Message: message,
	})
}
