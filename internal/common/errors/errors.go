// Package errors provides standardized error handling for the alert engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Scoped to a single saved search; logged and skipped.
	ErrCodeInvalidPredicate ErrorCode = "INVALID_PREDICATE"

	// Scoped to a single channel attempt; other channels still run.
	ErrCodeChannelDeliveryFailed ErrorCode = "CHANNEL_DELIVERY_FAILED"
	ErrCodeChannelTimeout        ErrorCode = "CHANNEL_TIMEOUT"
	ErrCodeChannelNotConfigured  ErrorCode = "CHANNEL_NOT_CONFIGURED"

	// Expected under concurrent or retried sweeps; callers treat as success.
	ErrCodeDuplicateRecord ErrorCode = "DUPLICATE_RECORD"

	// Missing preferences row; callers fall back to defaults.
	ErrCodePreferencesNotFound ErrorCode = "PREFERENCES_NOT_FOUND"

	// Fatal for the current sweep.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeRecordInsertFailed   ErrorCode = "RECORD_INSERT_FAILED"
	ErrCodeCheckpointFailed     ErrorCode = "CHECKPOINT_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidPredicateError creates a non-retryable predicate error scoped to one search.
func NewInvalidPredicateError(searchID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPredicate,
		Message:   "Saved search predicate is malformed",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"searchId": searchID},
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelDeliveryFailedError creates a retryable channel error; retry happens
// naturally on the next sweep, never synchronously within a run.
func NewChannelDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelDeliveryFailed,
		Message:   "Channel delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelTimeoutError creates a retryable timeout error for one channel attempt.
func NewChannelTimeoutError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelTimeout,
		Message:   "Channel delivery timed out",
		Details:   fmt.Sprintf("channel: %s", channel),
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelNotConfiguredError creates a non-retryable configuration error.
func NewChannelNotConfiguredError(channel, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelNotConfigured,
		Message:   "Channel is not configured for this recipient",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateRecordError signals the ledger's uniqueness constraint fired.
// Callers treat it as a successful no-op.
func NewDuplicateRecordError(searchID, itemID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateRecord,
		Message:   "Notification already recorded for this search/item pair",
		Details:   fmt.Sprintf("searchId: %s, itemId: %s", searchID, itemID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferencesNotFoundError signals a missing preferences row; callers use defaults.
func NewPreferencesNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferencesNotFound,
		Message:   "No notification preferences for user",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageUnavailableError creates a fatal error that aborts the current sweep.
func NewStorageUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   "Storage layer unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query error.
func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("query: %s, error: %s", query, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordInsertFailedError creates a retryable ledger insert error.
func NewRecordInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordInsertFailed,
		Message:   "Notification record insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCheckpointFailedError creates a retryable checkpoint update error.
func NewCheckpointFailedError(searchID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCheckpointFailed,
		Message:   "Saved search checkpoint update failed",
		Details:   fmt.Sprintf("searchId: %s, error: %s", searchID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// IsDuplicateRecord reports the expected dedup outcome under concurrency/retry.
func IsDuplicateRecord(err error) bool {
	return IsCode(err, ErrCodeDuplicateRecord)
}

// IsStorageUnavailable reports whether err must abort the whole sweep.
func IsStorageUnavailable(err error) bool {
	return IsCode(err, ErrCodeStorageUnavailable)
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PREDICATE"):
		return "PREDICATE"
	case strings.Contains(codeStr, "CHANNEL"):
		return "CHANNEL"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "QUERY") ||
		strings.Contains(codeStr, "RECORD") || strings.Contains(codeStr, "CHECKPOINT"):
		return "STORAGE"
	case strings.Contains(codeStr, "PREFERENCES"):
		return "PREFERENCES"
	default:
		return "OTHER"
	}
}
