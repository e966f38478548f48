package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_006", "Insufficient balance", http.StatusBadRequest),
			expected: "[LED_006] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("LED_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidQuantity", ErrInvalidQuantity(), CodeInvalidQuantity, 400},
		{"UnsupportedCurrency", ErrUnsupportedCurrency("XYZ"), CodeUnsupportedCurrency, 400},
		{"WalletNotFound", ErrWalletNotFound(), CodeWalletNotFound, 404},
		{"NoSuchHolding", ErrNoSuchHolding("BTC"), CodeNoSuchHolding, 404},
		{"InsufficientHolding", ErrInsufficientHolding("BTC"), CodeInsufficientHolding, 400},
		{"InsufficientBalance", ErrInsufficientBalance(), CodeInsufficientBalance, 400},
		{"PriceUnavailable", ErrPriceUnavailable("BTC", nil), CodePriceUnavailable, 503},
		{"SettlementFailed", ErrSettlementFailed(fmt.Errorf("db down")), CodeSettlementFailed, 500},
		{"SameCurrencySwap", ErrSameCurrencySwap(), CodeSameCurrencySwap, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestLedgerErrors_MessagesNameSymbol(t *testing.T) {
	assert.Contains(t, ErrUnsupportedCurrency("XYZ").Message, "XYZ")
	assert.Contains(t, ErrNoSuchHolding("BTC").Message, "BTC")
	assert.Contains(t, ErrPriceUnavailable("ETH", nil).Message, "ETH")
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 401},
		{"EmailExists", ErrEmailExists(), "AUTH_002", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"UserInactive", ErrUserInactive(), "AUTH_004", 403},
		{"RateLimitExceeded", ErrRateLimitExceeded(), "RATE_001", 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("connection refused")

	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.True(t, errors.Is(internal, inner))

	v := Validation("bad field")
	assert.Equal(t, "VAL_001", v.Code)
	assert.Equal(t, 400, v.HTTPStatus)
	assert.Equal(t, "bad field", v.Message)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeWalletNotFound, CodeOf(ErrWalletNotFound()))
	assert.Equal(t, CodeInsufficientBalance, CodeOf(fmt.Errorf("outer: %w", ErrInsufficientBalance())))
	assert.Equal(t, "", CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(ErrInvalidQuantity(), CodeInvalidQuantity))
	assert.False(t, HasCode(ErrInvalidQuantity(), CodeUnsupportedCurrency))
	assert.False(t, HasCode(nil, ""))
}
