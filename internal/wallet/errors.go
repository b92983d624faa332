package wallet

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a provider failure so callers can branch on the class
// instead of scraping message text.
type ErrorCode string

const (
	CodeUserRejected      ErrorCode = "user_rejected"
	CodeEstimateGasFailed ErrorCode = "estimate_gas_failed"
	CodeSlippageExceeded  ErrorCode = "slippage_exceeded"
	CodeInsufficientFunds ErrorCode = "insufficient_funds"
	CodeUnknown           ErrorCode = "unknown"
)

// Error definitions for zero-tolerance error handling
var (
	ErrTransactionReverted = errors.New("transaction reverted on chain")
	ErrReceiptTimeout      = errors.New("timed out waiting for transaction receipt")
)

// ProviderError wraps a raw node or signer error with its classification. The
// original error is preserved for logs; Message carries the raw provider text.
type ProviderError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseProviderError normalizes the message formats different nodes and
// signers emit into a single classified error. Matching is substring based
// because providers do not agree on error codes.
func ParseProviderError(err error) *ProviderError {
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return pe
		}
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)

	code := CodeUnknown
	switch {
	case strings.Contains(lower, "user rejected") ||
		strings.Contains(lower, "user denied") ||
		strings.Contains(lower, "action_rejected") ||
		strings.Contains(lower, "code: 4001"):
		code = CodeUserRejected
	case strings.Contains(lower, "dy < mindy"):
		code = CodeSlippageExceeded
	case strings.Contains(lower, "cannot estimate gas"):
		code = CodeEstimateGasFailed
	case strings.Contains(lower, "gas required exceeds") ||
		strings.Contains(lower, "insufficient funds"):
		code = CodeInsufficientFunds
	}

	return &ProviderError{Code: code, Message: msg, Err: err}
}

// IsUserRejection reports whether the error is the user declining to sign.
// Rejections are a deliberate choice, not a failure, and are never surfaced
// as alerts.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	return ParseProviderError(err).Code == CodeUserRejected
}
