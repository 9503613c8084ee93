package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// PanicResponder writes the response for a recovered panic.
type PanicResponder func(w http.ResponseWriter, r *http.Request, err error)

// Recovery returns a middleware that turns a panic into a 500 response.
// A nil respond writes a bare JSON error. http.ErrAbortHandler is
// re-raised so the server can abort the connection.
func Recovery(logger observability.Logger, respond PanicResponder) func(http.Handler) http.Handler {
	if respond == nil {
		respond = func(w http.ResponseWriter, _ *http.Request, _ error) {
			util.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": MsgInternalServerError})
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := util.NewStatusCapturingResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}

				logger.WithContext(r.Context()).Error("panic recovered",
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.Error(err),
					observability.String("stack", string(debug.Stack())),
				)

				if rw.HeaderWritten {
					return
				}
				respond(rw, r, err)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
