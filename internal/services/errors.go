package services

import "errors"

// ErrorKind classifies domain failures so the HTTP layer can map them to
// statuses without inspecting message strings.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindCapacity
	KindInvalidTarget
)

type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func Validation(message string) error {
	return &DomainError{Kind: KindValidation, Message: message}
}

func Authorization(message string) error {
	return &DomainError{Kind: KindAuthorization, Message: message}
}

func NotFound(message string) error {
	return &DomainError{Kind: KindNotFound, Message: message}
}

func Conflict(message string) error {
	return &DomainError{Kind: KindConflict, Message: message}
}

func Capacity(message string) error {
	return &DomainError{Kind: KindCapacity, Message: message}
}

func InvalidTarget(message string) error {
	return &DomainError{Kind: KindInvalidTarget, Message: message}
}

// KindOf extracts the kind from err, defaulting to KindInternal for
// anything that is not a DomainError.
func KindOf(err error) ErrorKind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}
