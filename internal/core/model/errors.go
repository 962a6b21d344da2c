package model

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a call site can observe.
type Kind int

const (
	KindNone Kind = iota
	KindNetwork
	KindServer
	KindAuthority
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindAuthority:
		return "authority"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "none"
	}
}

// Retryable kinds are shown inline with a retry affordance.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindServer
}

var (
	ErrMalformedCredential = errors.New("malformed credential")
	ErrNoSession           = errors.New("no session")
	ErrIllegalTransition   = errors.New("illegal transition")
	ErrUnmounted           = errors.New("view unmounted")
)

// AuthorityError: missing, malformed or expired credential, or insufficient role.
type AuthorityError struct {
	Status int
	Err    error
}

func (e AuthorityError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authority failure: status %d", e.Status)
	}
	if e.Err != nil {
		return "authority failure: " + e.Err.Error()
	}
	return "authority failure"
}

func (e AuthorityError) Unwrap() error { return e.Err }

// ConflictError: the server refused a transition the current state no longer permits.
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

type NetworkError struct {
	Err error
}

func (e NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return "network error: " + e.Err.Error()
}

func (e NetworkError) Unwrap() error { return e.Err }

type ServerError struct {
	Status int
	Msg    string
}

func (e ServerError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("server error: status %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("server error: status %d", e.Status)
}

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

func IsAuthority(err error) bool {
	var target AuthorityError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target NetworkError
	return errors.As(err, &target)
}

func IsServer(err error) bool {
	var target ServerError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// KindOf classifies err. Unclassified errors count as server errors so they
// still get a stable message and a retry affordance.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case IsAuthority(err):
		return KindAuthority
	case IsConflict(err):
		return KindConflict
	case IsValidation(err):
		return KindValidation
	case IsNetwork(err):
		return KindNetwork
	default:
		return KindServer
	}
}

var messages = map[Kind]string{
	KindNetwork:    "No se pudo conectar con el servidor. Inténtalo de nuevo.",
	KindServer:     "El servidor no pudo completar la solicitud. Inténtalo de nuevo.",
	KindAuthority:  "Tu sesión ha caducado. Inicia sesión de nuevo.",
	KindConflict:   "El elemento cambió mientras tanto. Se ha actualizado la lista.",
	KindValidation: "Revisa los datos introducidos.",
}

// Message returns the user-facing text for a kind. Raw transport errors are
// never shown.
func Message(k Kind) string {
	return messages[k]
}
