// Package ammerr defines the tagged error kinds returned by the ledger engine.
package ammerr

import "errors"

// Kind tags an engine error so transports can carry it verbatim.
type Kind string

const (
	KindOverflow              Kind = "Overflow"
	KindUnderflow             Kind = "Underflow"
	KindDivisionByZero        Kind = "DivisionByZero"
	KindInsufficientBalance   Kind = "InsufficientBalance"
	KindInsufficientShares    Kind = "InsufficientShares"
	KindInsufficientLiquidity Kind = "InsufficientLiquidity"
	KindSlippageExceeded      Kind = "SlippageExceeded"
	KindDeadlineExpired       Kind = "DeadlineExpired"
	KindDuplicatePool         Kind = "DuplicatePool"
	KindPoolNotFound          Kind = "PoolNotFound"
	KindPositionNotFound      Kind = "PositionNotFound"
	KindNothingToClaim        Kind = "NothingToClaim"
	KindNonZeroShares         Kind = "NonZeroShares"
	KindConvergenceError      Kind = "ConvergenceError"
	KindInvalidAmount         Kind = "InvalidAmount"
	KindInvalidFeeTier        Kind = "InvalidFeeTier"
	KindInvalidAmplification  Kind = "InvalidAmplification"
	KindIdenticalTokens       Kind = "IdenticalTokens"
	KindUnauthorized          Kind = "Unauthorized"
	KindUnknown               Kind = "Unknown"
)

// Error is a sentinel carrying its kind.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind returns the tag of the sentinel.
func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

var (
	ErrOverflow              = newError(KindOverflow, "arithmetic overflow")
	ErrUnderflow             = newError(KindUnderflow, "arithmetic underflow")
	ErrDivisionByZero        = newError(KindDivisionByZero, "division by zero")
	ErrInsufficientBalance   = newError(KindInsufficientBalance, "insufficient balance")
	ErrInsufficientShares    = newError(KindInsufficientShares, "insufficient shares")
	ErrInsufficientLiquidity = newError(KindInsufficientLiquidity, "insufficient liquidity")
	ErrSlippageExceeded      = newError(KindSlippageExceeded, "slippage exceeded")
	ErrDeadlineExpired       = newError(KindDeadlineExpired, "deadline expired")
	ErrDuplicatePool         = newError(KindDuplicatePool, "pool already exists")
	ErrPoolNotFound          = newError(KindPoolNotFound, "pool not found")
	ErrPositionNotFound      = newError(KindPositionNotFound, "position not found")
	ErrNothingToClaim        = newError(KindNothingToClaim, "nothing to claim")
	ErrNonZeroShares         = newError(KindNonZeroShares, "position still holds shares")
	ErrConvergence           = newError(KindConvergenceError, "stable invariant did not converge")
	ErrInvalidAmount         = newError(KindInvalidAmount, "invalid amount")
	ErrInvalidFeeTier        = newError(KindInvalidFeeTier, "unsupported fee tier")
	ErrInvalidAmplification  = newError(KindInvalidAmplification, "amplification out of range")
	ErrIdenticalTokens       = newError(KindIdenticalTokens, "pool tokens must differ")
	ErrUnauthorized          = newError(KindUnauthorized, "caller does not hold the position")
)

// KindOf extracts the tag of the first engine sentinel found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsFatal reports whether err signals a broken invariant rather than a rejected request.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConvergenceError, KindOverflow, KindUnderflow, KindDivisionByZero:
		return true
	default:
		return false
	}
}
