package domain

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrRoomClosed    = errors.New("room is closed")
	ErrNotInRoom     = errors.New("player not in the room")
	ErrEmptyMessage  = errors.New("message is required")
	ErrEmptyName     = errors.New("displayName is required")
	ErrUnknownIdent  = errors.New("identity not found")
	ErrAlreadySolved = errors.New("puzzle already solved today")
)
