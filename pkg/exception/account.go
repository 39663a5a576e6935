package exception

import "errors"

var (
	ErrAccountGuardMismatch = errors.New("account: call does not match adapter account")
	ErrAccountUnknownMode   = errors.New("account: unknown execution mode")
	ErrAccountNotConnected  = errors.New("account: venue not connected")
)
