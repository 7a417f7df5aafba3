package realtime

// ErrorKind classifies failures the way handlers react to them: scoped
// error event, silent drop, or degraded result. Authentication failures
// never reach this package; they are fatal to the handshake.
type ErrorKind int

const (
	ErrorAuthorization ErrorKind = iota + 1
	ErrorValidation
	ErrorNotFound
	ErrorConflict
	ErrorStore
)

// Error carries a short machine-stable reason string. The reason is the
// only thing that crosses the connection boundary; kinds and internals
// stay on the server.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func authorizationError(reason string) *Error {
	return &Error{Kind: ErrorAuthorization, Reason: reason}
}

func validationError(reason string) *Error {
	return &Error{Kind: ErrorValidation, Reason: reason}
}

func notFoundError(reason string) *Error {
	return &Error{Kind: ErrorNotFound, Reason: reason}
}

func conflictError(reason string) *Error {
	return &Error{Kind: ErrorConflict, Reason: reason}
}

func storeError(reason string) *Error {
	return &Error{Kind: ErrorStore, Reason: reason}
}
