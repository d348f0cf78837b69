package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound          = errors.New("user not found")
	ErrUsernameTaken         = errors.New("username already exists")
	ErrEmailTaken            = errors.New("email already in use")
	ErrInvalidUsername       = errors.New("username must be 3-32 letters or digits")
	ErrInvalidEmail          = errors.New("email address is invalid")
	ErrPasswordTooShort      = errors.New("password is too short")
	ErrValidationKeyNotFound = errors.New("confirmation token not found or expired")
	ErrAlreadyConfirmed      = errors.New("account is already confirmed")

	// Group errors
	ErrGroupNotFound          = errors.New("group not found")
	ErrGroupIdentifierTaken   = errors.New("group identifier is already taken")
	ErrGroupIdentifierInvalid = errors.New("group identifier is invalid")
	ErrNotGroupOwner          = errors.New("user is not a group owner")
	ErrNotGroupMember         = errors.New("user is not a group member")
	ErrLastMember             = errors.New("cannot remove the last member of a group")
	ErrLastOwner              = errors.New("cannot remove the last owner of a group")

	// Roster errors
	ErrGameAlreadyInRoster = errors.New("group already contains this game")
	ErrGameNotInRoster     = errors.New("game is not in the group roster")
	ErrPlayGameNotInRoster = errors.New("game must be added to the group to record plays")

	// Catalog errors
	ErrGameNotFound   = errors.New("game not found")
	ErrGameExists     = errors.New("game already exists")
	ErrInvalidGame    = errors.New("game name is required")
	ErrExternalLookup = errors.New("external game service failed")

	// Play errors
	ErrPlayNotFound = errors.New("play not found")
	ErrInvalidPlay  = errors.New("invalid play")

	// Storage errors
	ErrVersionConflict = errors.New("document was modified concurrently")
)
