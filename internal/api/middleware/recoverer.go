// SPDX-License-Identifier: MIT

package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/ManuGH/saytube/internal/apperr"
	xglog "github.com/ManuGH/saytube/internal/log"
)

// HeaderErrorKind carries the apperr kind of a failed response.
const HeaderErrorKind = "X-Error-Kind"

const panicBody = `{"detail":"Internal server error"}`

// Recoverer turns a handler panic into a 500 {"detail": ...} response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			switch {
			case rec == nil:
				return
			case rec == http.ErrAbortHandler:
				// net/http uses this to abort a response; let it through.
				panic(rec)
			}
			logger := xglog.WithComponentFromContext(r.Context(), "http")
			logger.Error().
				Str(xglog.FieldEvent, "http.panic").
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("path", r.URL.Path).
				Msg("handler panicked")

			h := w.Header()
			h.Set("Content-Type", "application/json")
			h.Set(HeaderErrorKind, apperr.KindInternal.String())
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, panicBody)
		}()
		next.ServeHTTP(w, r)
	})
}
