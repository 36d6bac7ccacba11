// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/saytube/internal/api/middleware"
	"github.com/ManuGH/saytube/internal/apperr"
	xglog "github.com/ManuGH/saytube/internal/log"
)

const maxJSONBodyBytes = 64 << 10

// HeaderErrorKind names the failure kind next to the {"detail"} body.
const HeaderErrorKind = middleware.HeaderErrorKind

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// writeError maps err to its kind's status and a {"detail"} body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := kind.HTTPStatus()

	logger := xglog.WithContext(r.Context(), s.logger)
	evt := logger.Warn()
	if code >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).
		Str(xglog.FieldEvent, "api.request_failed").
		Str("kind", kind.String()).
		Str("path", r.URL.Path).
		Msg("request failed")

	detail := apperr.DetailOf(err)
	if kind == apperr.KindInternal {
		detail = "Internal server error"
	}
	w.Header().Set(HeaderErrorKind, kind.String())
	writeDetail(w, code, detail)
}

// decodeJSON reads a bounded JSON body into dst. Any decoding failure is
// an invalid-input error.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.KindInvalidInput, op, "Request body is required")
		}
		return apperr.Wrap(apperr.KindInvalidInput, op, "Invalid JSON body", err)
	}
	return nil
}
