package gateway

import (
	"errors"
	"net/http"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// Sentinel errors for gateway lifecycle operations.
var (
	// ErrGatewayNotStopped indicates that the gateway is not in
	// stopped state when a start operation is attempted.
	ErrGatewayNotStopped = errors.New("gateway is not in stopped state")

	// ErrGatewayNotRunning indicates that the gateway is not
	// running when a stop operation is attempted.
	ErrGatewayNotRunning = errors.New("gateway is not running")

	// ErrNilConfig indicates that a nil configuration was provided.
	ErrNilConfig = errors.New("configuration is required")
)

// Envelope messages.
const (
	MsgEndpointNotFound   = "Endpoint not found"
	MsgDocsSuggestion     = "Check /api/docs for available endpoints"
	MsgNoToken            = "No authorization token provided"
	MsgInvalidToken       = "Invalid or expired token"
	MsgAuthFailed         = "Authentication failed"
	MsgInternalError      = "Internal server error"
	MsgRedactedDetails    = "an internal error occurred"
	MsgRedactedAuthDetail = "verification service unavailable"
)

// NotFoundBody is the 404 envelope.
type NotFoundBody struct {
	Error      string `json:"error"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	Suggestion string `json:"suggestion"`
}

// AuthErrorBody is the 401 and 403 envelope.
type AuthErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// InternalErrorBody is the 500 envelope.
type InternalErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// errorWriter renders gateway-originated failures. With hideDetails
// set, diagnostic text is logged but replaced in the response.
type errorWriter struct {
	logger      observability.Logger
	hideDetails bool
}

func (e *errorWriter) notFound(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, http.StatusNotFound, NotFoundBody{
		Error:      MsgEndpointNotFound,
		Path:       r.URL.Path,
		Method:     r.Method,
		Suggestion: MsgDocsSuggestion,
	})
}

// auth writes the envelope for a failed admin check.
func (e *errorWriter) auth(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *util.AuthError
	if !errors.As(err, &authErr) {
		e.internal(w, r, err)
		return
	}

	body := AuthErrorBody{}
	switch {
	case errors.Is(authErr, util.ErrMissingCredential):
		body.Error = MsgNoToken
	case errors.Is(authErr, util.ErrInvalidCredential):
		body.Error = MsgInvalidToken
	default:
		body.Error = MsgAuthFailed
		body.Details = authErr.Detail
		if e.hideDetails {
			body.Details = MsgRedactedAuthDetail
		}
	}

	util.WriteJSON(w, authErr.StatusCode(), body)
}

// internal writes the 500 envelope, or the status carried by err.
func (e *errorWriter) internal(w http.ResponseWriter, r *http.Request, err error) {
	status := util.StatusFromError(err, http.StatusInternalServerError)

	e.logger.WithContext(r.Context()).Error("request failed",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Int("status", status),
		observability.Error(err),
	)

	message := err.Error()
	if e.hideDetails {
		message = MsgRedactedDetails
	}

	util.WriteJSON(w, status, InternalErrorBody{
		Error:   MsgInternalError,
		Message: message,
		Path:    r.URL.Path,
	})
}

// recovered adapts internal to the recovery middleware.
func (e *errorWriter) recovered(w http.ResponseWriter, r *http.Request, err error) {
	e.internal(w, r, err)
}
