package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDataUnavailable   = errors.New("market data unavailable")
	ErrDuplicatePosition = errors.New("position already open for asset")
	ErrNoSuchPosition    = errors.New("no open position for asset")
	ErrOverSell          = errors.New("sell quantity exceeds remaining position")
	ErrExecutionFailed   = errors.New("trade execution failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrLockHeld          = errors.New("lock already held")
)
