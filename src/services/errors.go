package services

import (
	"errors"
	"fmt"

	"hive/src/storage"
)

// Kind classifies a failure the engine reports to its callers.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindUnauthorized    Kind = "unauthorized"
	KindInvalidState    Kind = "invalid_state"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindUpstreamFailure Kind = "upstream_failure"
	KindInvalidInput    Kind = "invalid_input"
)

const upstreamMessage = "service temporarily unavailable"

// Error is a typed engine failure. Message is safe to show to end users;
// Err holds the internal cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind and message so wrapped copies still compare.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated, Message: "sign in required"}
	ErrJoinRequestRejected  = &Error{Kind: KindInvalidState, Message: "your request to join was declined, contact the group admin"}
	ErrInvalidInviteCode    = &Error{Kind: KindUnauthorized, Message: "invalid invite code"}
	ErrAlreadyMember        = &Error{Kind: KindConflict, Message: "already a member of this group"}
	ErrGroupNotFound        = &Error{Kind: KindNotFound, Message: "group not found"}
	ErrJoinRequestNotFound  = &Error{Kind: KindNotFound, Message: "join request not found"}
	ErrEventNotFound        = &Error{Kind: KindNotFound, Message: "event not found"}
	ErrPostNotFound         = &Error{Kind: KindNotFound, Message: "post not found"}
	ErrNotModerator         = &Error{Kind: KindUnauthorized, Message: "only group moderators can do that"}
	ErrNotGroupMember       = &Error{Kind: KindUnauthorized, Message: "only group members can do that"}
	ErrOwnerCannotLeave     = &Error{Kind: KindInvalidState, Message: "the group owner cannot leave the group"}
	ErrAlreadyApproved      = &Error{Kind: KindInvalidState, Message: "join request already approved"}
	ErrRequestNotPending    = &Error{Kind: KindInvalidState, Message: "join request is not pending"}
	ErrJoinNeedsRequest     = &Error{Kind: KindInvalidState, Message: "this group requires a join request"}
	ErrRequestNotAccepted   = &Error{Kind: KindInvalidState, Message: "this group does not accept join requests"}
	ErrEventAlreadyLive     = &Error{Kind: KindInvalidState, Message: "event is already published"}
	ErrEventCannotUnpublish = &Error{Kind: KindInvalidState, Message: "a published event cannot return to draft"}
	ErrPostDeleted          = &Error{Kind: KindInvalidState, Message: "post has been deleted"}
	ErrPostHasNoVideo       = &Error{Kind: KindInvalidState, Message: "only posts with a video can be curated"}
	ErrParentNotInGroup     = &Error{Kind: KindInvalidState, Message: "replies must stay in the same group"}
	ErrNotPostAuthor        = &Error{Kind: KindUnauthorized, Message: "only the author can edit this post"}
)

func unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func invalid(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

func upstream(err error) *Error {
	return &Error{Kind: KindUpstreamFailure, Message: upstreamMessage, Err: err}
}

// KindOf returns the kind of err, treating anything untyped as an upstream
// failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamFailure
}

// PublicMessage is the user-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return upstreamMessage
}

// translate maps storage sentinels onto engine failures. notFound is used
// when the row is missing.
func translate(err error, notFound *Error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if notFound != nil {
			return &Error{Kind: notFound.Kind, Message: notFound.Message, Err: err}
		}
		return &Error{Kind: KindNotFound, Message: "not found", Err: err}
	case errors.Is(err, storage.ErrConflict):
		return &Error{Kind: KindConflict, Message: "already exists", Err: err}
	case errors.Is(err, storage.ErrNotMember):
		return &Error{Kind: ErrNotGroupMember.Kind, Message: ErrNotGroupMember.Message, Err: err}
	default:
		return upstream(err)
	}
}
