// Package errors provides centralized error handling for the task manager.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the application. All error types can be checked
// using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrSpawnFailed indicates that the coding-agent subprocess could not be
	// started at all. Immediately terminal; no protocol or timeout logic ran.
	ErrSpawnFailed = errors.New("subprocess spawn failed")

	// ErrDuplicateTask indicates a task ID was delivered while the same task
	// was still executing.
	ErrDuplicateTask = errors.New("task already in flight")

	// ErrQueueUnavailable indicates the job queue backend cannot be reached.
	ErrQueueUnavailable = errors.New("queue unavailable")

	// ErrQueueEmpty indicates no task was available within the poll window.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrResultNotFound indicates no stored result exists for a task ID.
	ErrResultNotFound = errors.New("result not found")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidWorker indicates an invalid worker configuration value.
	ErrConfigInvalidWorker = errors.New("invalid worker configuration")

	// ErrConfigInvalidProcess indicates an invalid process configuration value.
	ErrConfigInvalidProcess = errors.New("invalid process configuration")

	// ErrInvalidTask indicates a task request failed validation before
	// execution (missing ID, empty prompt, relative working directory).
	ErrInvalidTask = errors.New("invalid task request")

	// ErrSessionLogNotFound indicates no session transcript could be located.
	// Advisory only; never surfaces in an ExecutionResult.
	ErrSessionLogNotFound = errors.New("session log not found")

	// ErrInvalidOutputFormat indicates an unsupported --output value.
	ErrInvalidOutputFormat = errors.New("invalid output format")
)
