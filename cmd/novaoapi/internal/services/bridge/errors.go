package bridge

import (
	"errors"
	"fmt"
)

// GenericFailureMessage is reported when the panel rejected a login without saying why.
const GenericFailureMessage = "Login failed at panel"

// ErrMissingSessionCookie means the panel reported success but granted no session.
var ErrMissingSessionCookie = errors.New("panel reported success but issued no session cookie")

// ConfigError means the bridge was asked to run without a panel URL.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "bridge configuration: " + e.Reason
}

// UpstreamAuthError carries the panel's own rejection.
type UpstreamAuthError struct {
	Status  int
	Message string
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("panel rejected login (status %d): %s", e.Status, e.Message)
}

// ConnectionError means no response came back from the panel.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "panel unreachable: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }
