package domain

import "errors"

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidMessageID = errors.New("invalid message id")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageOwner  = errors.New("not the message owner")
	ErrClientClosed     = errors.New("client closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)
