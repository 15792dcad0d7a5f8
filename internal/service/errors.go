package service

import "errors"

// Precondition failures of hall operations.  Handlers map them to 409 or
// 400 responses with a user facing message.
var (
	ErrRowFull         = errors.New("row has no empty slot")
	ErrRowEmpty        = errors.New("row holds no pallet")
	ErrRowNotEmpty     = errors.New("row still holds pallets")
	ErrArticleMissing  = errors.New("row has no article assigned")
	ErrArticleRequired = errors.New("article label is required")
	ErrInvalidStrategy = errors.New("unknown dispatch strategy")
	ErrNoCandidateRow  = errors.New("no row holds the requested article")
)
