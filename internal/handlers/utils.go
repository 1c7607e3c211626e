package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/internal/services"
)

const (
	maxJSONBodyBytes = 1 << 20
	internalError    = "Internal server error"
)

// MessageResponse is the body of every error and of message-only replies.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// writeServiceError maps service error kinds to statuses. Anything the
// services did not classify is logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUploadFailed):
		status = http.StatusBadGateway
	}

	message := services.Message(err)
	if status == http.StatusInternalServerError || message == "" {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, internalError)
		return
	}
	writeError(w, status, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, formError("Failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errAvatarTooLarge
	}
	return data, nil
}
