package engine

import (
	"errors"
	"fmt"
)

// Code identifies why an operation was rejected. Codes are stable wire
// values surfaced to the originating client as ERROR events.
type Code string

const (
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
	CodeInvalidAction     Code = "INVALID_ACTION"
	CodeInvalidRaise      Code = "INVALID_RAISE"
	CodeRaiseTooSmall     Code = "RAISE_TOO_SMALL"
	CodeCannotCheck       Code = "CANNOT_CHECK"
	CodeBuyinTooSmall     Code = "BUYIN_TOO_SMALL"
	CodeBuyinTooLarge     Code = "BUYIN_TOO_LARGE"
	CodeRebuyExceedsMax   Code = "REBUY_EXCEEDS_MAX"
	CodeNotYourTurn       Code = "NOT_YOUR_TURN"
	CodeAlreadyFolded     Code = "ALREADY_FOLDED"
	CodeDealingBoard      Code = "DEALING_BOARD"
	CodeNoHandRunning     Code = "NO_HAND_RUNNING"
	CodeHandInProgress    Code = "HAND_IN_PROGRESS"
	CodeSeatNotFound      Code = "SEAT_NOT_FOUND"
	CodeSeatTaken         Code = "SEAT_TAKEN"
	CodeAlreadySeated     Code = "ALREADY_SEATED"
	CodeNotSeated         Code = "NOT_SEATED"
	CodeWalletNotFound    Code = "WALLET_NOT_FOUND"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientStack Code = "INSUFFICIENT_STACK"
	CodeTableNotFound     Code = "TABLE_NOT_FOUND"
	CodeInternal          Code = "INTERNAL"
)

// Error is a rejected operation. It never indicates a mutated state.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Errf builds a coded error with a formatted message.
func Errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from an error chain, or CodeInternal for plain
// infrastructure failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
