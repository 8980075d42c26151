package entity

import "errors"

// Domain errors shared across usecases and adapters.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidUserID   = errors.New("invalid user ID")
	ErrWordNotFound    = errors.New("word not found")
	ErrInvalidWordText = errors.New("invalid word text")
	ErrDuplicateWord   = errors.New("word already exists")

	ErrJobNotFound         = errors.New("job not found")
	ErrInvalidJobRequest   = errors.New("invalid job request")
	ErrJobNotDownloadable  = errors.New("job has no downloadable archive")
	ErrJobAlreadyClaimed   = errors.New("job already claimed")
	ErrInvalidArchive      = errors.New("invalid archive")
	ErrUnsupportedArchive  = errors.New("unsupported archive version")
	ErrInvalidObjectRef    = errors.New("invalid object reference")
	ErrFolderCycle         = errors.New("folder parent would introduce a cycle")
	ErrInvalidFilterOrder  = errors.New("invalid filter or order")
	ErrUnsupportedDatabase = errors.New("unsupported database driver")
)
