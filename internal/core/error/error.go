package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "session storage operation failed"
	// NoDocumentMessage is shown when a question arrives before any document was processed.
	NoDocumentMessage = "Please upload a financial document first."
	// ResponseFormatMessage is shown when the model reply cannot be decoded.
	ResponseFormatMessage = "Failed to process the response from the language model."
)

// Kind classifies a failure so the presentation layer can decide how to render it.
type Kind string

const (
	KindInternal       Kind = "internal"
	KindValidation     Kind = "validation"
	KindNoDocument     Kind = "no_document"
	KindExtraction     Kind = "extraction"
	KindConnectivity   Kind = "connectivity"
	KindResponseFormat Kind = "response_format"
	KindStorage        Kind = "storage"
	KindCanceled       Kind = "canceled"
)

// StatusClientClosedRequest is reported when the caller went away before the work finished.
const StatusClientClosedRequest = 499

// AppError wraps an underlying error with a kind, an HTTP status and a safe message.
type AppError struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return t.Kind != "" && t.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// New creates a new internal AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    KindInternal,
		Status:  status,
		Message: message,
	}
}

// Validation reports a request the caller has to fix.
func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// NoDocument reports a question asked before a document was loaded.
func NoDocument() *AppError {
	return &AppError{Kind: KindNoDocument, Status: http.StatusConflict, Message: NoDocumentMessage}
}

// Extraction reports an unreadable or corrupt upload.
func Extraction(err error, message string) *AppError {
	return &AppError{Err: err, Kind: KindExtraction, Status: http.StatusUnprocessableEntity, Message: message}
}

// Connectivity reports an unreachable generation endpoint or an unavailable model.
func Connectivity(err error, model string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    KindConnectivity,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("Could not connect to Ollama. Please ensure it is running and the model '%s' is available.", model),
	}
}

// ResponseFormat reports a generation reply that could not be decoded.
func ResponseFormat(err error) *AppError {
	return &AppError{Err: err, Kind: KindResponseFormat, Status: http.StatusBadGateway, Message: ResponseFormatMessage}
}

// Canceled reports work abandoned because the request context ended.
func Canceled(err error) *AppError {
	return &AppError{Err: err, Kind: KindCanceled, Status: StatusClientClosedRequest, Message: "request cancelled"}
}

// Sentinels usable with errors.Is to test for a kind.
var (
	ErrValidation     = &AppError{Kind: KindValidation}
	ErrNoDocument     = &AppError{Kind: KindNoDocument}
	ErrExtraction     = &AppError{Kind: KindExtraction}
	ErrConnectivity   = &AppError{Kind: KindConnectivity}
	ErrResponseFormat = &AppError{Kind: KindResponseFormat}
	ErrStorage        = &AppError{Kind: KindStorage}
	ErrCanceled       = &AppError{Kind: KindCanceled}
)

// KindOf returns the kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status carried by err, defaulting to 500.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns a message that is safe to show to the user.
func MessageOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return SystemErrorMessage
}
