package common

import "fmt"

// Code is a stable numeric error code. Grouping follows
// original_source/programs/common/src/error.rs: common, router, slab,
// matching, risk, anti-toxicity ranges, with an InvariantViolation code
// added for the one unrecoverable, abort-on-sight class spec.md §7 names.
type Code uint32

const (
	// Common (0-99)
	InvalidInstruction Code = 0
	InvalidAccount     Code = 1
	InsufficientFunds  Code = 2

	// Pool / capacity (100-199)
	PoolFull    Code = 100
	OutOfSlices Code = 101

	// Book state (200-299)
	InstrumentFrozen  Code = 200
	UnknownOrder      Code = 201
	InvalidInstrument Code = 202

	// Reservation state (300-399)
	UnknownHold           Code = 300
	ReservationExpired    Code = 301
	InsufficientLiquidity Code = 302
	MisalignedQty         Code = 303
	MisalignedPx          Code = 304

	// Capability / escrow (400-499)
	CapScopeMismatch   Code = 400
	CapExpired         Code = 401
	CapBurned          Code = 402
	EscrowInsufficient Code = 403
	ChargeExceedsMax   Code = 404
	CommitmentMismatch Code = 405
	KillBandTripped    Code = 406

	// Risk (500-599)
	PreTradeMarginFail Code = 500
	NotUnderMM         Code = 501
	PriceBandExceeded  Code = 502

	// Anti-toxicity (600-699)
	ARGTaxApplied Code = 600

	// Programmer invariants (900-999) - fatal, abort
	InvariantViolation Code = 900
)

var codeNames = map[Code]string{
	InvalidInstruction:    "InvalidInstruction",
	InvalidAccount:        "InvalidAccount",
	InsufficientFunds:     "InsufficientFunds",
	PoolFull:              "PoolFull",
	OutOfSlices:           "OutOfSlices",
	InstrumentFrozen:      "InstrumentFrozen",
	UnknownOrder:          "UnknownOrder",
	InvalidInstrument:     "InvalidInstrument",
	UnknownHold:           "UnknownHold",
	ReservationExpired:    "ReservationExpired",
	InsufficientLiquidity: "InsufficientLiquidity",
	MisalignedQty:         "MisalignedQty",
	MisalignedPx:          "MisalignedPx",
	CapScopeMismatch:      "CapScopeMismatch",
	CapExpired:            "CapExpired",
	CapBurned:             "CapBurned",
	EscrowInsufficient:    "EscrowInsufficient",
	ChargeExceedsMax:      "ChargeExceedsMax",
	CommitmentMismatch:    "CommitmentMismatch",
	KillBandTripped:       "KillBandTripped",
	PreTradeMarginFail:    "PreTradeMarginFail",
	NotUnderMM:            "NotUnderMM",
	PriceBandExceeded:     "PriceBandExceeded",
	ARGTaxApplied:         "ARGTaxApplied",
	InvariantViolation:    "InvariantViolation",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is the flat, stable-coded error type every core operation returns.
// It never wraps a lower-level error; callers match on Code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an *Error for the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *Error carrying the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
