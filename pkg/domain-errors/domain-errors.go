package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
// Every abort condition of the trading core gets its own code so callers and
// tests can assert on the specific precondition that was violated.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"
	CodeUnauthorized Code = "unauthorized"

	// Capability errors: the presented token does not authorize the operation.
	CodeWrongCapability Code = "wrong_capability" // capability bound to a different shop or item
	CodeCapConsumed     Code = "cap_consumed"     // single-use capability already spent
	CodeWrongReceipt    Code = "wrong_receipt"    // borrow receipt does not match shop or item

	// Item state-machine errors.
	CodeItemNotFound      Code = "item_not_found"
	CodeItemLocked        Code = "item_locked"        // plain take refused on a locked item
	CodeItemListed        Code = "item_listed"        // borrow-for-mutation refused while listed
	CodeListedExclusively Code = "listed_exclusively" // operation blocked by an exclusive listing
	CodeAlreadyListed     Code = "already_listed"
	CodeNotListed         Code = "not_listed"

	// Value errors.
	CodeIncorrectAmount   Code = "incorrect_amount"   // payment does not equal the listed price
	CodeUnderpaid         Code = "underpaid"          // payment below the exclusive minimum
	CodeInsufficientFunds Code = "insufficient_funds" // withdrawing more than collected
	CodeNotEmpty          Code = "not_empty"          // closing a non-empty shop or extension

	// Rule-checker and extension errors.
	CodeNoTransferPolicy      Code = "no_transfer_policy" // lock refused: no rule-checker for the item type
	CodeExtensionNotInstalled Code = "extension_not_installed"
	CodeExtensionDisabled     Code = "extension_disabled"
	CodeExtensionForbidden    Code = "extension_forbidden" // installed but lacks the permission bit
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
