package repository

import "errors"

// Common repository errors
var (
	ErrSiteNotFound   = errors.New("site not found")
	ErrSiteExists     = errors.New("site already exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrOptionNotFound = errors.New("option not found")
	ErrMetaNotFound   = errors.New("meta not found")
)
