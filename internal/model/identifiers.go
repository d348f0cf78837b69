package model

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	usernamePattern   = regexp.MustCompile(`^[a-z0-9]{3,32}$`)
	identifierPattern = regexp.MustCompile(`^[a-z0-9]{3,32}$`)
)

// MinPasswordLength is the shortest password accepted at registration
const MinPasswordLength = 8

// NormalizeUsername folds a username to its stored form
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateUsername normalises and validates a username
func ValidateUsername(raw string) (string, error) {
	username := NormalizeUsername(raw)
	if !usernamePattern.MatchString(username) {
		return "", ErrInvalidUsername
	}
	return username, nil
}

// NormalizeGroupIdentifier folds a group identifier to its stored form
func NormalizeGroupIdentifier(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateGroupIdentifier normalises and validates a group identifier
func ValidateGroupIdentifier(raw string) (string, error) {
	identifier := NormalizeGroupIdentifier(raw)
	if !identifierPattern.MatchString(identifier) {
		return "", ErrGroupIdentifierInvalid
	}
	return identifier, nil
}

// ValidateEmail normalises an optional email. Empty input is allowed.
func ValidateEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidatePassword checks password strength rules
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// NormalizeGameName folds a catalog game name to its stored form
func NormalizeGameName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// LooksLikeEmail reports whether a login identifier should be treated as an
// email address rather than a username
func LooksLikeEmail(s string) bool {
	return strings.Contains(s, "@")
}
