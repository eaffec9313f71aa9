package handler

import (
	"net/http"
)

type PublicKeyProvider interface {
	PublicKey() (string, error)
}

type VapidHandler struct {
	keys PublicKeyProvider
}

func NewVapidHandler(keys PublicKeyProvider) *VapidHandler {
	return &VapidHandler{keys: keys}
}

// GET /vapid-public-key
func (h *VapidHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, err := h.keys.PublicKey()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}
