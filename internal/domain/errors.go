package domain

import "errors"

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrSourceNotFound = errors.New("source not found")
)
