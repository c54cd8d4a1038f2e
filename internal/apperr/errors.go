// Package apperr defines the classified errors used across the service.
// Anything that is not an *Error is treated as unclassified.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how callers must react to them.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindExternalService Kind = "external_service"
	KindProcessing      Kind = "processing"
)

// Stable error codes.
const (
	CodeJobNotFound        = "analysis_job_not_found"
	CodeDocumentNotFound   = "document_not_found"
	CodeValidation         = "validation_error"
	CodeLLMService         = "llm_service_error"
	CodeLLMExtraction      = "llm_extraction_error"
	CodeStorageService     = "storage_service_error"
	CodePDFExtraction      = "pdf_extraction_error"
	CodeDatabase           = "database_error"
	CodeInvalidDocType     = "invalid_document_type"
	CodeDocumentNotAllowed = "document_not_allowed"
	CodeQueueService       = "queue_service_error"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// NotFound reports a missing resource.
func NotFound(code, resourceType, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    code,
		Message: fmt.Sprintf("%s not found", resourceType),
		Details: map[string]any{"resource_type": resourceType, "resource_id": id},
	}
}

// Validation reports a malformed request. field may be empty.
func Validation(code, field, message string) *Error {
	details := map[string]any{}
	if field != "" {
		details["field"] = field
	}
	return &Error{Kind: KindValidation, Code: code, Message: message, Details: details}
}

// ExternalService wraps a failure of a collaborator (LLM, storage, database).
func ExternalService(code, service, message string, err error) *Error {
	details := map[string]any{"service_name": service}
	if err != nil {
		details["original_error"] = err.Error()
		details["original_error_type"] = fmt.Sprintf("%T", err)
	}
	return &Error{Kind: KindExternalService, Code: code, Message: message, Details: details, Err: err}
}

// Processing reports a step that completed without a usable result.
func Processing(code, message string, details map[string]any, err error) *Error {
	if details == nil {
		details = map[string]any{}
	}
	if err != nil {
		details["original_error"] = err.Error()
		details["original_error_type"] = fmt.Sprintf("%T", err)
	}
	return &Error{Kind: KindProcessing, Code: code, Message: message, Details: details, Err: err}
}
