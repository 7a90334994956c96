package domain

import "errors"

var (
	ErrPeerNotFound     = errors.New("peer not found")
	ErrAlreadyJoined    = errors.New("already joined a room")
	ErrNotJoined        = errors.New("not joined to a room")
	ErrControllerClosed = errors.New("peer controller closed")
	ErrInvalidState     = errors.New("invalid negotiation state")
)
