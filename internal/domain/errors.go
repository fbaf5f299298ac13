package domain

import "errors"

var (
	ErrAuctionNotFound   = errors.New("auction document not found")
	ErrSaveConflict      = errors.New("auction document save conflict")
	ErrDataInconsistency = errors.New("auction data inconsistency")
	ErrPublishFailed     = errors.New("failed to publish auction results")
	ErrReadinessFailed   = errors.New("required services are not available")
	ErrBidRejected       = errors.New("bid rejected")
)
