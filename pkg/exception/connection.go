package exception

import "errors"

var (
	ErrConnectionClose   = errors.New("connection closed")
	ErrConnectTimeout    = errors.New("connect timed out")
	ErrVenueUnreachable  = errors.New("venue unreachable")
	ErrStreamUnavailable = errors.New("private stream unavailable")
)
