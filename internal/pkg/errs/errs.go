package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidParams = New(BizCodeInvalidParams, http.StatusBadRequest, "invalid params", nil)

	ErrBuildNotFound         = New(BizCodeBuildNotFound, http.StatusNotFound, "build not found", nil)
	ErrDuplicateFullBuild    = New(BizCodeDuplicateFullBuild, http.StatusConflict, "a full build with this incremental already exists", nil)
	ErrDuplicateDeltaBuild   = New(BizCodeDuplicateDeltaBuild, http.StatusConflict, "a delta with this base and target already exists", nil)
	ErrPackageFileExists     = New(BizCodePackageFileExists, http.StatusConflict, "a package file with this name already exists", nil)
	ErrDeltaBaseUnknown      = New(BizCodeDeltaBaseUnknown, http.StatusBadRequest, "delta base incremental is not registered as a full build", nil)
	ErrDeltaNotAdjacent      = New(BizCodeDeltaNotAdjacent, http.StatusBadRequest, "delta target is not adjacent to its base incremental", nil)
	ErrInsufficientStorage   = New(BizCodeInsufficientStorage, http.StatusInsufficientStorage, "insufficient disk space for upload", nil)
	ErrDeltaChangelogDerived = New(BizCodeDeltaChangelogDerived, http.StatusBadRequest, "delta changelog is derived from its full build and cannot be edited directly", nil)
)

type Error struct {
	bizCode  int
	httpCode int
	message  string
	details  any
	internal error
}

func New(bizCode, httpCode int, message string, internal error) *Error {
	return &Error{
		bizCode:  bizCode,
		httpCode: httpCode,
		message:  message,
		internal: internal,
	}
}

func NewUnexpected(msg string, errs ...error) *Error {
	var err error
	if len(errs) != 0 {
		err = errs[0]
	}
	return &Error{
		bizCode:  -1,
		message:  msg,
		httpCode: http.StatusInternalServerError,
		internal: err,
	}
}

func NewUnchecked(msg string, errs ...error) *Error {
	var err error
	if len(errs) != 0 {
		err = errs[0]
	}
	return &Error{
		bizCode:  -1,
		message:  msg,
		httpCode: http.StatusBadRequest,
		internal: err,
	}
}

func (e *Error) Error() string {

	if e.internal != nil {
		return fmt.Sprintf("%s: %v", e.message, e.internal)
	}

	return e.message
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	return ok && e.bizCode == t.BizCode()
}

func (e *Error) Unwrap() error {
	return e.internal
}

func (e *Error) BizCode() int {
	return e.bizCode
}

func (e *Error) HTTPCode() int {
	return e.httpCode
}

func (e *Error) Message() string {
	return e.message
}

func (e *Error) Details() any {
	return e.details
}

func (e *Error) Wrap(err error) *Error {
	return &Error{
		bizCode:  e.bizCode,
		httpCode: e.httpCode,
		message:  e.message,
		details:  e.details,
		internal: err,
	}
}

func (e *Error) WithDetails(details any) *Error {

	return &Error{
		bizCode:  e.bizCode,
		httpCode: e.httpCode,
		message:  e.message,
		details:  details,
		internal: e.internal,
	}
}

func (e *Error) WithMessage(msg string) *Error {

	return &Error{
		bizCode:  e.bizCode,
		httpCode: e.httpCode,
		message:  msg,
		details:  e.details,
		internal: e.internal,
	}
}
