// Package apperr defines the error taxonomy shared by every component.
// Components return these values unchanged; only the HTTP layer turns a
// Kind into a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Forbidden
	Validation
	Unauthenticated
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Validation:
		return "validation"
	case Unauthenticated:
		return "unauthenticated"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified, human-readable failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error. errors.Is still sees err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the human-readable message of the first *Error in err's chain.
// Unclassified errors yield a generic message so storage details never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

var (
	ErrAccountNotFound = New(NotFound, "User not found")
	ErrPostNotFound    = New(NotFound, "Post not found")
	ErrCommentNotFound = New(NotFound, "Comment does not exist")

	ErrSelfFollow       = New(Validation, "You cannot follow yourself")
	ErrAlreadyFollowing = New(Validation, "You are already following this user")
	ErrNotFollowing     = New(Validation, "You are not following this user")
	ErrAlreadyLiked     = New(Validation, "Post already liked")
	ErrNotLiked         = New(Validation, "Post has not yet been liked")
	ErrEmptyPost        = New(Validation, "Post must have text or an image")
	ErrEmptyComment     = New(Validation, "Comment text is required")

	ErrForbidden          = New(Forbidden, "Not authorized to modify this resource")
	ErrUnauthenticated    = New(Unauthenticated, "Not authorized to access this route")
	ErrInvalidCredentials = New(Unauthenticated, "Invalid credentials")

	ErrEmailTaken = New(Conflict, "Email is already registered")
	ErrConflict   = New(Conflict, "Concurrent modification, please retry")
)
