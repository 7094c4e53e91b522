// Package errors defines the coded error taxonomy used across the archive
// pipeline. Each failure class has its own type so that component boundaries
// can tell them apart with errors.As.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown        = "UNKNOWN"
	CodeClassification = "CLASSIFICATION"
	CodeDownload       = "DOWNLOAD"
	CodeTranscription  = "TRANSCRIPTION"
	CodeStore          = "STORE"
	CodeConfig         = "CONFIG"
)

// ApplicationError is implemented by every error type in this package.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error is the shared representation behind the typed errors.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first application error in err's chain,
// or CodeUnknown if there is none.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// ClassificationError reports a structurally invalid inbound message.
type ClassificationError struct {
	base Error
}

func (e *ClassificationError) Error() string { return e.base.Error() }
func (e *ClassificationError) Code() string  { return e.base.Code() }
func (e *ClassificationError) Unwrap() error { return e.base.Unwrap() }

func NewClassificationError(message string, cause error) error {
	return &ClassificationError{base: Error{code: CodeClassification, message: message, err: cause}}
}

// DownloadError reports media that could not be fetched into the staging area.
type DownloadError struct {
	base Error
}

func (e *DownloadError) Error() string { return e.base.Error() }
func (e *DownloadError) Code() string  { return e.base.Code() }
func (e *DownloadError) Unwrap() error { return e.base.Unwrap() }

func NewDownloadError(message string, cause error) error {
	return &DownloadError{base: Error{code: CodeDownload, message: message, err: cause}}
}

// TranscriptionError reports a speech-to-text failure.
type TranscriptionError struct {
	base Error
}

func (e *TranscriptionError) Error() string { return e.base.Error() }
func (e *TranscriptionError) Code() string  { return e.base.Code() }
func (e *TranscriptionError) Unwrap() error { return e.base.Unwrap() }

func NewTranscriptionError(message string, cause error) error {
	return &TranscriptionError{base: Error{code: CodeTranscription, message: message, err: cause}}
}

// StoreError reports a failed archive write or read.
type StoreError struct {
	base Error
}

func (e *StoreError) Error() string { return e.base.Error() }
func (e *StoreError) Code() string  { return e.base.Code() }
func (e *StoreError) Unwrap() error { return e.base.Unwrap() }

func NewStoreError(message string, cause error) error {
	return &StoreError{base: Error{code: CodeStore, message: message, err: cause}}
}

type ConfigError struct {
	base Error
}

func (e *ConfigError) Error() string { return e.base.Error() }
func (e *ConfigError) Code() string  { return e.base.Code() }
func (e *ConfigError) Unwrap() error { return e.base.Unwrap() }

func NewConfigError(message string, cause error) error {
	return &ConfigError{base: Error{code: CodeConfig, message: message, err: cause}}
}
