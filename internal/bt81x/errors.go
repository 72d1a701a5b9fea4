package bt81x

import "errors"

// Protocol outcomes. Transport failures are not listed here; they are
// returned wrapped so the underlying error stays reachable with errors.Is.
var (
	// ErrInvalidParameter reports an unsupported pixel format, font or
	// frequency, or an address range outside its region.
	ErrInvalidParameter = errors.New("bt81x: invalid parameter")
	// ErrTimeout reports a bounded poll that ran out of attempts.
	ErrTimeout = errors.New("bt81x: timeout")
	// ErrLimitReached reports a full command buffer, exhausted write-verify
	// retries or an exhausted bitmap handle arena.
	ErrLimitReached = errors.New("bt81x: limit reached")
	// ErrNegative reports a condition that was checked and found false, such
	// as a touch on a different tag.
	ErrNegative = errors.New("bt81x: negative")
	// ErrNotSupported reports an unrecognised chip revision.
	ErrNotSupported = errors.New("bt81x: not supported")
)
