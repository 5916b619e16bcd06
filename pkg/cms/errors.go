package cms

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("cms: record not found")

// Error CMS 调用失败
type Error struct {
	Op         string
	Collection string
	Status     int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "cms request failed"
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	return fmt.Sprintf("cms %s %s failed (status=%d): %s", e.Op, e.Collection, e.Status, msg)
}

func (e *Error) Unwrap() error {
	if e.Status == 404 {
		return ErrNotFound
	}
	return e.Cause
}

func opErr(op, collection string, status int, message string, cause error) *Error {
	return &Error{Op: op, Collection: collection, Status: status, Message: message, Cause: cause}
}
