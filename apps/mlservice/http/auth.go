package mlhttp

import (
	"encoding/json"
	"net/http"
	"strings"
)

type (
	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	refreshRequest struct {
		Refresh string `json:"refresh"`
	}
)

func decode(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errInvalidBody
	}
	return nil
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var data loginRequest
	if err := decode(r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(data.Username) == "" || data.Password == "" {
		s.writeError(w, r, &httpError{http.StatusBadRequest, "username and password are required"})
		return
	}

	raw, err := s.opts.AuthProxy.Login(r.Context(), data.Username, data.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var data refreshRequest
	if err := decode(r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}
	if data.Refresh == "" {
		s.writeError(w, r, &httpError{http.StatusBadRequest, "refresh token is required"})
		return
	}

	raw, err := s.opts.AuthProxy.Refresh(r.Context(), data.Refresh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}
