package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Error codes of the ledger taxonomy.
const (
	CodeInvalidQuantity     = "LED_001"
	CodeUnsupportedCurrency = "LED_002"
	CodeWalletNotFound      = "LED_003"
	CodeNoSuchHolding       = "LED_004"
	CodeInsufficientHolding = "LED_005"
	CodeInsufficientBalance = "LED_006"
	CodePriceUnavailable    = "LED_007"
	CodeSettlementFailed    = "LED_008"
	CodeSameCurrencySwap    = "LED_009"
)

// ---- Ledger (LED) ----

func ErrInvalidQuantity() *AppError {
	return New(CodeInvalidQuantity, "Quantity should be a positive number", http.StatusBadRequest)
}

func ErrUnsupportedCurrency(symbol string) *AppError {
	return New(CodeUnsupportedCurrency, fmt.Sprintf("Currency %s is not supported", symbol), http.StatusBadRequest)
}

func ErrWalletNotFound() *AppError {
	return New(CodeWalletNotFound, "Wallet not found", http.StatusNotFound)
}

func ErrNoSuchHolding(symbol string) *AppError {
	return New(CodeNoSuchHolding, fmt.Sprintf("You have no %s coin", symbol), http.StatusNotFound)
}

func ErrInsufficientHolding(symbol string) *AppError {
	return New(CodeInsufficientHolding, fmt.Sprintf("You can't spend more %s than you have", symbol), http.StatusBadRequest)
}

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Your balance is less than transaction price", http.StatusBadRequest)
}

func ErrPriceUnavailable(symbol string, err error) *AppError {
	return Wrap(CodePriceUnavailable, fmt.Sprintf("Price for %s is unavailable", symbol), http.StatusServiceUnavailable, err)
}

func ErrSettlementFailed(err error) *AppError {
	return Wrap(CodeSettlementFailed, "Settlement failed", http.StatusInternalServerError, err)
}

func ErrSameCurrencySwap() *AppError {
	return New(CodeSameCurrencySwap, "Cannot swap a currency for itself", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrUserInactive() *AppError {
	return New("AUTH_004", "User account is inactive", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// CodeOf returns the AppError code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
