package mlhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/chat"
	"github.com/urfu-lab/studyhub/services/coreapi"
)

// httpError is an error with the status and detail it is reported with.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%d: %s", e.status, e.detail)
}

var (
	errInvalidToken       = &httpError{http.StatusUnauthorized, "invalid token"}
	errUserNotFound       = &httpError{http.StatusUnauthorized, "user not found"}
	errInvalidCredentials = &httpError{http.StatusUnauthorized, "invalid credentials"}
	errInvalidBody        = &httpError{http.StatusBadRequest, "invalid request body"}
	errInvalidChatID      = &httpError{http.StatusBadRequest, "invalid chat id"}
	errTooManyRequests    = &httpError{http.StatusTooManyRequests, "too many requests"}
	errCoreUnavailable    = &httpError{http.StatusBadGateway, "core api unavailable"}
	errInternal           = &httpError{http.StatusInternalServerError, "internal server error"}
)

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// toHTTPError maps domain errors to what the client sees.
func toHTTPError(err error) *httpError {
	cause := errors.Cause(err)

	var hErr *httpError
	if errors.As(err, &hErr) {
		return hErr
	}

	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		msg := vErr.Error()
		if len(vErr.Fields) > 0 {
			msg = vErr.Fields[0].Error
		}
		return &httpError{http.StatusBadRequest, msg}
	}

	switch cause {
	case chat.ErrNotFound, chat.ErrMessageNotFound:
		return &httpError{http.StatusNotFound, cause.Error()}
	case chat.ErrUserNotFound:
		return errUserNotFound
	case coreapi.ErrUnauthorized:
		return errInvalidCredentials
	}

	var statusErr *coreapi.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden {
			return errInvalidToken
		}
		return errCoreUnavailable
	}
	return nil
}

// writeError reports err to the client. Unexpected errors are logged and hidden.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if hErr := toHTTPError(err); hErr != nil {
		writeJSON(w, hErr.status, detail(hErr.detail))
		return
	}

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		s.opts.Logger.Debug("request canceled by client", map[string]interface{}{"path": r.URL.Path})
		return
	}

	s.opts.Logger.Error(err.Error(), err, requestInfo(r))
	if core.IsShutdown(err) {
		s.signalShutdown()
	}

	msg := errInternal.detail
	if s.opts.Debug {
		msg = err.Error()
	}
	writeJSON(w, errInternal.status, detail(msg))
}

func requestInfo(r *http.Request) map[string]interface{} {
	info := map[string]interface{}{"method": r.Method, "path": r.URL.Path}
	if u, ok := userFrom(r.Context()); ok {
		info["user"] = u.ExternalUserID.String()
	}
	return info
}
