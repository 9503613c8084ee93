// Package auth implements the admin gate of the gateway.
//
// Credentials are never inspected locally. Every request to an admin
// rule is verified by calling the user service, and the gate fails
// closed: a request is admitted only when the service explicitly reports
// the credential as valid.
//
// # Usage
//
//	verifier, err := auth.NewHTTPVerifier(endpoint, "/verify-admin", 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	gate := auth.NewGate(verifier, auth.WithMetrics(metrics), auth.WithLogger(logger))
//
//	result, err := gate.Authenticate(ctx, r.Header.Get("Authorization"))
package auth
