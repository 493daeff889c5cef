package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound     = errors.New("player not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("invalid username")

	// Queue errors
	ErrAlreadyQueued = errors.New("player is already in the waiting queue")
	ErrTokenNotFound = errors.New("no queued player holds this token")

	// Corpus errors
	ErrCorpusEmpty = errors.New("sentence corpus is empty")
)
