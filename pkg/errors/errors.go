// Package errors provides structured error handling for the avatars client.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Wallet prompt rejected or unauthorized
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Permission denied or insufficient funds
)

// AvatarError is the structured error type used across the module.
type AvatarError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *AvatarError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AvatarError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for AvatarError by comparing codes.
func (e *AvatarError) Is(target error) bool {
	var t *AvatarError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &AvatarError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &AvatarError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &AvatarError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Wallet provider errors.
	ErrProviderAbsent = &AvatarError{
		Code:       "PROVIDER_ABSENT",
		Message:    "no wallet provider available",
		Suggestion: "create or import an account with 'avatars account create'",
		ExitCode:   ExitNotFound,
	}

	ErrUserRejected = &AvatarError{
		Code:     "USER_REJECTED",
		Message:  "request rejected in wallet",
		ExitCode: ExitAuth,
	}

	ErrUnauthorized = &AvatarError{
		Code:       "UNAUTHORIZED",
		Message:    "wallet account is not authorized",
		Suggestion: "run 'avatars connect' first",
		ExitCode:   ExitAuth,
	}

	ErrNotConnected = &AvatarError{
		Code:       "NOT_CONNECTED",
		Message:    "wallet is not connected",
		Suggestion: "run 'avatars connect' first",
		ExitCode:   ExitAuth,
	}

	ErrNetworkMismatch = &AvatarError{
		Code:     "NETWORK_MISMATCH",
		Message:  "wallet is on the wrong network",
		ExitCode: ExitGeneral,
	}

	ErrChainSwitchFailed = &AvatarError{
		Code:     "CHAIN_SWITCH_FAILED",
		Message:  "failed to switch wallet network",
		ExitCode: ExitGeneral,
	}

	ErrInvalidMnemonic = &AvatarError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	// Chain errors.
	ErrNetworkError = &AvatarError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrNotMinted = &AvatarError{
		Code:     "NOT_MINTED",
		Message:  "token has not been minted",
		ExitCode: ExitNotFound,
	}

	ErrTxReverted = &AvatarError{
		Code:     "TX_REVERTED",
		Message:  "transaction reverted on chain",
		ExitCode: ExitGeneral,
	}

	ErrInvalidAddress = &AvatarError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrInvalidAmount = &AvatarError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	// Mint errors.
	ErrInsufficientFunds = &AvatarError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "insufficient balance to mint",
		ExitCode: ExitPermission,
	}

	ErrMintInProgress = &AvatarError{
		Code:     "MINT_IN_PROGRESS",
		Message:  "a mint is already in progress",
		ExitCode: ExitGeneral,
	}

	ErrBalanceRefreshBusy = &AvatarError{
		Code:     "BALANCE_REFRESH_BUSY",
		Message:  "balance refresh already in progress",
		ExitCode: ExitGeneral,
	}

	ErrTokenOutOfRange = &AvatarError{
		Code:     "TOKEN_OUT_OF_RANGE",
		Message:  "token id is outside the mintable range",
		ExitCode: ExitInput,
	}

	ErrAlreadyMinted = &AvatarError{
		Code:     "ALREADY_MINTED",
		Message:  "token has already been minted",
		ExitCode: ExitInput,
	}

	// Catalog and config errors.
	ErrCatalogInvalid = &AvatarError{
		Code:     "CATALOG_INVALID",
		Message:  "metadata catalog is invalid",
		ExitCode: ExitInput,
	}

	ErrConfigNotFound = &AvatarError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &AvatarError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &AvatarError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}

	ErrInvalidFormat = &AvatarError{
		Code:     "INVALID_FORMAT",
		Message:  "invalid format",
		ExitCode: ExitInput,
	}
)

// New creates a new AvatarError with the given code and message.
func New(code, message string) *AvatarError {
	return &AvatarError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ae *AvatarError
	if errors.As(err, &ae) {
		return &AvatarError{
			Code:       ae.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ae.Message),
			Details:    ae.Details,
			Suggestion: ae.Suggestion,
			Cause:      err,
			ExitCode:   ae.ExitCode,
		}
	}

	return &AvatarError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of a sentinel carrying the underlying cause.
// errors.Is matches both the sentinel (by code) and the cause.
func WithCause(sentinel *AvatarError, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &AvatarError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ae *AvatarError
	if errors.As(err, &ae) {
		return &AvatarError{
			Code:       ae.Code,
			Message:    ae.Message,
			Details:    details,
			Suggestion: ae.Suggestion,
			Cause:      ae.Cause,
			ExitCode:   ae.ExitCode,
		}
	}

	return &AvatarError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ae *AvatarError
	if errors.As(err, &ae) {
		return &AvatarError{
			Code:       ae.Code,
			Message:    ae.Message,
			Details:    ae.Details,
			Suggestion: suggestion,
			Cause:      ae.Cause,
			ExitCode:   ae.ExitCode,
		}
	}

	return &AvatarError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ae *AvatarError
	if errors.As(err, &ae) {
		return ae.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ae *AvatarError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "GENERAL_ERROR"
}

// Message returns the human-readable message of an error, without causes.
// Non-structured errors return their full text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *AvatarError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
