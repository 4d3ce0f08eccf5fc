package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Client secret validation errors
	ErrSecretMissing   = fmt.Errorf("client secret not found")
	ErrSecretInvalid   = fmt.Errorf("client secret invalid")
	ErrSecretEmpty     = fmt.Errorf("%w: placeholder secret, not yet configured", ErrSecretInvalid)
	ErrSecretMalformed = fmt.Errorf("%w: no installed or web credential block", ErrSecretInvalid)
	ErrSecretCorrupt   = fmt.Errorf("client secret corrupt")

	// Authorization flow errors
	ErrListenerBindFailed  = fmt.Errorf("failed to bind loopback listener")
	ErrRedirectMalformed   = fmt.Errorf("malformed authorization redirect")
	ErrAuthorizationDenied = fmt.Errorf("authorization denied")
	ErrTokenExchangeFailed = fmt.Errorf("token exchange failed")

	// Credential errors
	ErrNotAuthenticated  = fmt.Errorf("not authenticated")
	ErrRefreshFailed     = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken    = fmt.Errorf("no refresh token available")
	ErrCredentialCorrupt = fmt.Errorf("credential record corrupt")
	ErrCredentialInvalid = fmt.Errorf("credential record invalid")
	ErrTimeout           = fmt.Errorf("operation timed out")

	// Transfer errors
	ErrTransferIO        = fmt.Errorf("media file unreadable")
	ErrTransferTransport = fmt.Errorf("upload transport failed")
	ErrMetadataRejected  = fmt.Errorf("video metadata rejected")
	ErrThumbnailFailed   = fmt.Errorf("thumbnail attach failed")

	// Queue errors
	ErrUserCancelled = fmt.Errorf("cancelled by user")
	ErrQueueBusy     = fmt.Errorf("upload queue already processing")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsCancelled reports whether err is an intentional cancellation rather than a failure.
//
// A deadline expiry is a failure, not a cancel.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrUserCancelled) || errors.Is(err, context.Canceled)
}

// Reason returns a human-readable reason string for a terminal error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsCancelled(err):
		return "cancelled"
	case errors.Is(err, ErrSecretMissing):
		return "client_secret.json not found"
	case errors.Is(err, ErrSecretEmpty):
		return "client secret is an empty placeholder"
	case errors.Is(err, ErrSecretInvalid):
		return "client secret has no installed or web credentials"
	case errors.Is(err, ErrSecretCorrupt):
		return "client secret is not valid JSON"
	case errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrNotAuthenticated):
		return "channel needs re-authorization"
	}
	return err.Error()
}
