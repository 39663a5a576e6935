package exception

import "errors"

var (
	ErrOrderDuplicate         = errors.New("order: duplicate (account, order id) with differing payload")
	ErrOrderUnknown           = errors.New("order: not found")
	ErrOrderInvalidTransition = errors.New("order: invalid state transition")
	ErrOrderInvalidRequest    = errors.New("order: invalid request")
	ErrOrderUnsupportedType   = errors.New("order: unsupported type")
	ErrOrderNotCancellable    = errors.New("order: not cancellable in current state")
	ErrOrderNotOrphaned       = errors.New("order: not orphaned")
)

var (
	ErrOrderEmptyResponseID    = errors.New("order: empty response order id")
	ErrOrderDecodeResponseBody = errors.New("order: decode response body")
	ErrOrderVenueRejected      = errors.New("order: rejected by venue")
)
