package domain

import "errors"

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("record not found")
	ErrForbidden           = errors.New("access forbidden: you don't own this resource")
	ErrTooLarge            = errors.New("file exceeds the size limit")
	ErrUnsupportedType     = errors.New("unsupported content type")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrUploadFailed        = errors.New("file upload failed")
	ErrPersistFailed       = errors.New("failed to persist record")
)
