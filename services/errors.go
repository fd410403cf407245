package services

import (
	"errors"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room is full")
	ErrInvalidState         = errors.New("action not allowed in current room state")
	ErrInvalidConfiguration = errors.New("invalid room configuration")
	ErrCodeSpaceExhausted   = errors.New("unable to allocate a room code")
	ErrInvalidAnswer        = errors.New("invalid answer")
	ErrRateLimited          = errors.New("too many messages")
)

// Wire codes sent to clients alongside error messages.
const (
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeRoomNotFound         = "room_not_found"
	CodeRoomFull             = "room_full"
	CodeInvalidState         = "invalid_state"
	CodeInvalidConfiguration = "invalid_configuration"
	CodeCodeSpaceExhausted   = "code_space_exhausted"
	CodeInvalidAnswer        = "invalid_answer"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = "internal"
)

// ErrorCode maps an error returned by this package to its wire code.
// Anything unrecognised is reported as internal.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrInvalidConfiguration):
		return CodeInvalidConfiguration
	case errors.Is(err, ErrCodeSpaceExhausted):
		return CodeCodeSpaceExhausted
	case errors.Is(err, ErrInvalidAnswer):
		return CodeInvalidAnswer
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// PublicMessage hides internal failure details from clients.
func PublicMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return "internal error"
	}
	return err.Error()
}
