package domain

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomClosed       = errors.New("room already closed")
	ErrQuestionNotFound = errors.New("question not found")
	ErrViewerRequired   = errors.New("signed-in viewer required")
	ErrAlreadyLiked     = errors.New("question already liked by viewer")
	ErrLikeRequired     = errors.New("like id required")
	ErrNothingToConfirm = errors.New("no deletion pending confirmation")
)
