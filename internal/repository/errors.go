package repository

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrNameExists      = errors.New("full name already exists")
)
