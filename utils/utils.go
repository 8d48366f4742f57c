package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	WriteJSON(w, statusCode, map[string]string{"error": message})
}

func WriteJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}

// DecodeJSON reads a JSON request body into dst, capped at maxBytes.
func DecodeJSON(r *http.Request, dst interface{}, maxBytes int64) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes)).Decode(dst)
}
