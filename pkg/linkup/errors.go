package linkup

import (
	"errors"
	"fmt"
	"time"

	"github.com/cgmlink/librelinkup/pkg/cgm"
)

// terminalError denotes a sentinel error that is never worth retrying
type terminalError string

func (e terminalError) Error() string {
	return string(e)
}

// Terminal fulfills the cgm.TerminalError interface
func (e terminalError) Terminal() bool {
	return true
}

var (

	// ErrBadCredentials is returned when the service rejects the login
	// credentials. Note that LibreLinkUp accounts are distinct from LibreLink
	// accounts, a frequent source of this error
	ErrBadCredentials = terminalError("bad credentials (make sure to use a LibreLinkUp account, not a LibreLink one)")

	// ErrNoConnections is returned when the account does not follow any patients
	ErrNoConnections = terminalError("account does not follow any patients")

	// ErrConnectionNotFound is returned when the configured selection strategy
	// does not match any of the available connections
	ErrConnectionNotFound = terminalError("no connection matches the configured selection")

	// ErrUnknownRegion is returned when a region code cannot be resolved to an
	// API host
	ErrUnknownRegion = terminalError("unknown region")

	// ErrTooManyRedirects is returned when the service requests a second
	// regional redirect during a single login (regions never chain)
	ErrTooManyRedirects = terminalError("too many regional redirects during login")

	// ErrMalformedResponse is wrapped by all errors caused by undecodable
	// response bodies
	ErrMalformedResponse = errors.New("malformed response")
)

// AccountLockedError is returned when the service has temporarily locked the
// account after repeated failed login attempts
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, retry after %v", e.RetryAfter)
}

// Terminal fulfills the cgm.TerminalError interface
func (e *AccountLockedError) Terminal() bool {
	return true
}

// AdditionalStepError is returned when the account requires an additional
// authentication step (MFA, terms acceptance, ...) that only the official app
// can perform
type AdditionalStepError struct {
	Component string
}

func (e *AdditionalStepError) Error() string {
	return fmt.Sprintf("additional account action required: %s (perform it in the LibreLinkUp app and retry)", e.Component)
}

// Terminal fulfills the cgm.TerminalError interface
func (e *AdditionalStepError) Terminal() bool {
	return true
}

// StatusError is returned when the service answers with an unexpected HTTP
// status code
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with HTTP %d: %s", e.Path, e.Code, e.Body)
}

// MalformedError is returned when a structurally required response body
// cannot be decoded. It wraps ErrMalformedResponse
type MalformedError struct {
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("failed to decode response from %s: %s", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedResponse
}

// IsTerminal reports whether err is terminal for the purposes of polling /
// retrying: bad credentials, lockouts, pending account steps and
// configuration errors are; transport, status and decoding errors are not
func IsTerminal(err error) bool {
	return cgm.IsTerminal(err)
}
