package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/registry"
)

const (
	// HeaderAuthorization is the credential header forwarded to the user
	// service unchanged.
	HeaderAuthorization = "Authorization"

	// maxVerificationBody caps the verification response read into memory.
	maxVerificationBody = 1 << 20
)

// Verification is the decoded answer of the user service.
type Verification struct {
	Valid bool

	// User is the raw JSON of the principal, when the service sent one.
	User json.RawMessage

	// Error is the service's own explanation, when it sent one.
	Error string
}

// Verifier checks a credential against the user service.
type Verifier interface {
	Verify(ctx context.Context, authorization string) (*Verification, error)
}

// StatusError is returned when the user service answers with a
// non-success status.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface. The service's own message is
// preferred so that it can be relayed to the client.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("verification service responded with status %d", e.StatusCode)
}

// HTTPVerifier calls GET <user service><verifyPath> with the caller's
// Authorization header. It performs exactly one attempt per call.
type HTTPVerifier struct {
	endpoint   string
	httpClient *http.Client
	logger     observability.Logger
}

// VerifierOption configures an HTTPVerifier.
type VerifierOption func(*HTTPVerifier)

// WithHTTPClient sets the HTTP client used for verification calls.
func WithHTTPClient(client *http.Client) VerifierOption {
	return func(v *HTTPVerifier) {
		v.httpClient = client
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *HTTPVerifier) {
		v.logger = logger
	}
}

// NewHTTPVerifier creates a verifier targeting the given user service.
func NewHTTPVerifier(
	service *registry.ServiceEndpoint,
	verifyPath string,
	timeout time.Duration,
	opts ...VerifierOption,
) (*HTTPVerifier, error) {
	if service == nil || service.URL == nil {
		return nil, fmt.Errorf("user service endpoint is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("verification timeout must be positive")
	}

	endpoint := *service.URL
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/") + "/" + strings.TrimPrefix(verifyPath, "/")
	endpoint.RawPath = ""

	v := &HTTPVerifier{
		endpoint:   endpoint.String(),
		httpClient: &http.Client{Timeout: timeout},
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Endpoint returns the verification URL.
func (v *HTTPVerifier) Endpoint() string {
	return v.endpoint
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, authorization string) (*Verification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(HeaderAuthorization, authorization)
	req.Header.Set("Accept", "application/json")
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	observability.InjectTraceContext(ctx, req)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVerificationBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read verification response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.logger.Debug("verification service returned non-success status",
			observability.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorField(body),
		}
	}

	return parseVerification(body)
}

func parseVerification(body []byte) (*Verification, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed verification response")
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("malformed verification response")
	}

	result := &Verification{
		Valid: parsed.Get("valid").Type == gjson.True,
		Error: parsed.Get("error").String(),
	}

	if user := parsed.Get("user"); user.Exists() && user.Type != gjson.Null {
		result.User = json.RawMessage(user.Raw)
	}

	return result, nil
}

func errorField(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	if e := gjson.GetBytes(body, "error"); e.Type == gjson.String {
		return e.Str
	}
	return ""
}

// unwrapURLError drops the "Get <url>:" prefix the client adds so the
// detail names the failure itself.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		if uerr.Timeout() {
			return fmt.Errorf("verification timed out: %w", uerr.Err)
		}
		return uerr.Err
	}
	return err
}
