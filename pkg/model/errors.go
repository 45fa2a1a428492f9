package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrInvalidKind is returned when an unrecognized artifact kind is requested
	ErrInvalidKind = goerr.New("invalid artifact kind")

	// ErrBackendUnavailable indicates the completion backend could not be reached
	ErrBackendUnavailable = goerr.New("completion backend unavailable")

	// ErrBackendError indicates the completion backend returned a non-transport error
	ErrBackendError = goerr.New("completion backend error")

	// ErrQueryTimeout indicates the query exceeded the statement timeout
	ErrQueryTimeout = goerr.New("query timeout")

	// ErrQueryError indicates the database reported an error for the query
	ErrQueryError = goerr.New("query error")

	// ErrNotReadOnly is returned by executors handed SQL that did not pass validation
	ErrNotReadOnly = goerr.New("sql is not validated as read-only")

	// ErrValidationFailed indicates generated SQL was rejected by the validator
	ErrValidationFailed = goerr.New("sql validation failed")
)
