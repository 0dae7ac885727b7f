package domain

import (
	"errors"
)

var (
	ErrInvalid = errors.New("invalid input")

	ErrNoLocation = errors.New("no location available")
	ErrNoAmount   = errors.New("no amount entered")
	ErrNoPlace    = errors.New("no place selected")
	ErrFirstPlace = errors.New("no place was selected, the first one has been selected")
	ErrTooMuch    = errors.New("amount too long")
	ErrNotLocal   = errors.New("only local places can be deleted")
	ErrNotFound   = errors.New("not found")

	ErrDocumentNotFound      = errors.New("spreadsheet document not found")
	ErrAuthorizationRequired = errors.New("authorization required")
	ErrSyncRunning           = errors.New("sync already running")
)
