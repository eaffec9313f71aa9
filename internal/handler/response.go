package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.PayloadTooLarge(tooLarge.Limit)
		}
		return apperrors.ValidationError("Invalid request body").WithCause(err)
	}
	return nil
}
