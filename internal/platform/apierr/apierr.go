package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/yungbote/curriculum-backend/internal/pkg/errors"
)

// Error carries the HTTP status and stable machine code a handler should answer with.

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(code string, err error) *Error   { return New(http.StatusNotFound, code, err) }
func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }
func Conflict(code string, err error) *Error   { return New(http.StatusConflict, code, err) }

// From unwraps an *Error from err. Repository sentinels map to 404/400/409 under
// fallbackCode; anything else is a 500.
func From(err error, fallbackCode string) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return NotFound(fallbackCode, err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return BadRequest(fallbackCode, err)
	case errors.Is(err, pkgerrors.ErrConflict):
		return Conflict(fallbackCode, err)
	}
	return New(http.StatusInternalServerError, fallbackCode, err)
}
