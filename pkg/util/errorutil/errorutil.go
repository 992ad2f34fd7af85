package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindReferential  Kind = "referential"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// Error codes surfaced to front ends.
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeInvalidDeadlineFormat = "INVALID_DEADLINE_FORMAT"
	CodeInvalidOpeningDate    = "INVALID_OPENING_DATE"
	CodeInvalidWeek           = "INVALID_WEEK"
	CodeInvalidTitle          = "INVALID_TITLE"
	CodeInvalidLink           = "INVALID_LINK"
	CodeInvalidName           = "INVALID_NAME"
	CodeInvalidParticipation  = "INVALID_PARTICIPATION_MODE"
	CodeInvalidFamilySize     = "INVALID_FAMILY_SIZE"
	CodeInvalidChildrenAnswer = "INVALID_CHILDREN_ANSWER"
	CodeInvalidChildAges      = "INVALID_CHILD_AGES"
	CodeInvalidPayload        = "INVALID_PAYLOAD"
	CodeInvalidOutcome        = "INVALID_OUTCOME"
	CodeNoActiveDialog        = "NO_ACTIVE_DIALOG"
	CodeDuplicateTitle        = "DUPLICATE_TITLE"
	CodeDuplicateSubmission   = "DUPLICATE_SUBMISSION"
	CodeAlreadyDecided        = "ALREADY_DECIDED"
	CodeAlreadyProcessed      = "ALREADY_PROCESSED"
	CodeTaskInUse             = "TASK_IN_USE"
	CodeTaskNotOpen           = "TASK_NOT_OPEN"
	CodeTaskNotPublished      = "TASK_NOT_PUBLISHED"
	CodeUserNotRegistered     = "USER_NOT_REGISTERED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeInternal              = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Kind       Kind
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same code, so sentinels match
// copies produced by WithDetails.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithDetails returns a copy of the error carrying the given details.
func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	clone := *e
	clone.Details = details
	return &clone
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind Kind, code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message, HTTPStatus: status, Details: details}
}

func newValidation(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message, http.StatusBadRequest, nil)
}

func newConflict(code, message string) *DomainError {
	return NewDomainError(KindConflict, code, message, http.StatusConflict, nil)
}

func newReferential(code, message string) *DomainError {
	return NewDomainError(KindReferential, code, message, http.StatusUnprocessableEntity, nil)
}

var (
	ErrInvalidDeadlineFormat = newValidation(CodeInvalidDeadlineFormat, "deadline must be auto or DD.MM.YYYY HH:MM")
	ErrInvalidOpeningDate    = newValidation(CodeInvalidOpeningDate, "opening date must be now, tomorrow, week or DD.MM.YYYY HH:MM before the deadline")
	ErrInvalidWeek           = newValidation(CodeInvalidWeek, "week must be between 1 and 53")
	ErrInvalidTitle          = newValidation(CodeInvalidTitle, "title must be between 5 and 100 characters")
	ErrInvalidLink           = newValidation(CodeInvalidLink, "link must be http(s)://, t.me/ or @handle")
	ErrInvalidName           = newValidation(CodeInvalidName, "name must contain at least 2 characters")
	ErrInvalidParticipation  = newValidation(CodeInvalidParticipation, "participation mode must be individual or family")
	ErrInvalidFamilySize     = newValidation(CodeInvalidFamilySize, "family size must be a number between 2 and 10")
	ErrInvalidChildrenAnswer = newValidation(CodeInvalidChildrenAnswer, "answer yes or no")
	ErrInvalidChildAges      = newValidation(CodeInvalidChildAges, "child ages must be ages 0-17 or buckets 0-3, 4-7, 8-12, 13-17")
	ErrInvalidPayload        = newValidation(CodeInvalidPayload, "report content is empty or malformed")
	ErrInvalidOutcome        = newValidation(CodeInvalidOutcome, "outcome must be approved or rejected")
	ErrNoActiveDialog        = newValidation(CodeNoActiveDialog, "no dialog in progress")

	ErrDuplicateTitle      = newConflict(CodeDuplicateTitle, "a task with this title already exists")
	ErrDuplicateSubmission = newConflict(CodeDuplicateSubmission, "a report for this task is already pending or approved")
	ErrAlreadyDecided      = newConflict(CodeAlreadyDecided, "submission has already been decided")
	ErrAlreadyProcessed    = newConflict(CodeAlreadyProcessed, "message has already been processed")

	ErrTaskInUse         = newReferential(CodeTaskInUse, "task has submissions; archive it instead")
	ErrTaskNotOpen       = newReferential(CodeTaskNotOpen, "task is archived")
	ErrTaskNotPublished  = newReferential(CodeTaskNotPublished, "task is not published yet")
	ErrUserNotRegistered = newReferential(CodeUserNotRegistered, "registration is not completed")
)

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(KindValidation, CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Kind:       KindNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(KindUnauthorized, CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(KindForbidden, CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Kind:       KindInternal,
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsNotFound reports whether err is a not-found domain error.
func IsNotFound(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Kind == KindNotFound
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
