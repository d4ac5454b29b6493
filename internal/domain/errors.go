package domain

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoomNotFound = errors.New("room not found")
	ErrNameTaken    = errors.New("name taken")
	ErrNotOwner     = errors.New("not the room owner")
)
