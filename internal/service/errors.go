package service

import "errors"

// Typed failures the REST and socket layers translate for clients.
// Anything else propagating out of a service is an internal error.
var (
	ErrNotFound         = errors.New("not found")
	ErrNotAMember       = errors.New("not a member of this conversation")
	ErrBlocked          = errors.New("conversation blocked between these users")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrSelfConversation = errors.New("cannot create a conversation with yourself")
	ErrAdminOnly        = errors.New("only admins can send in this conversation")
	ErrNoUpdates        = errors.New("no recognized fields to update")
)
