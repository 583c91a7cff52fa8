package gate

import "errors"

// Sentinel errors returned by Gate.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoRole          = errors.New("user has no role")
	ErrUnknownScreen   = errors.New("unknown screen")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)
