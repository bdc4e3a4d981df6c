package session

import (
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	minPasswordLen = 8
)

// ValidateLogin checks a login form before any call is made. It returns the message to show, or "".
func ValidateLogin(username, password string) string {
	if strings.TrimSpace(username) == "" {
		return "Username is required"
	}
	if password == "" {
		return "Password is required"
	}
	return ""
}

// ValidateSignup checks a signup form before any call is made. It returns the message to show, or "".
func ValidateSignup(username, password, email string) string {
	if strings.TrimSpace(username) == "" {
		return "Username is required"
	}
	if utf8.RuneCountInString(username) < minUsernameLen {
		return "Username must be at least 3 characters long"
	}
	if password == "" {
		return "Password is required"
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return "Password must be at least 8 characters long"
	}
	if email != "" && !strings.Contains(email, "@") {
		return "Please enter a valid email address"
	}
	return ""
}
