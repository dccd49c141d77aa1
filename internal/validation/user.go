// Package validation provides input validation for account and profile fields.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 128
	UsernameMinLength = 3
	UsernameMaxLength = 30
	EmailMaxLength    = 254
	BioMaxLength      = 500
)

var (
	usernameRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	usernameStripper  = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	emailDomainSuffix = regexp.MustCompile(`\.[a-zA-Z]{2,}$`)
)

// ValidatePassword checks the signup password length bounds.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength {
		return fmt.Errorf("password must be at least %d characters long", PasswordMinLength)
	}
	if n > PasswordMaxLength {
		return fmt.Errorf("password must not exceed %d characters", PasswordMaxLength)
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < UsernameMinLength {
		return fmt.Errorf("username must be at least %d characters long", UsernameMinLength)
	}
	if len(username) > UsernameMaxLength {
		return fmt.Errorf("username must not exceed %d characters", UsernameMaxLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}
	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > EmailMaxLength {
		return fmt.Errorf("email must not exceed %d characters", EmailMaxLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || strings.Count(email, "@") != 1 {
		return fmt.Errorf("invalid email format")
	}
	if !emailDomainSuffix.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateBio bounds the free-form profile bio.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > BioMaxLength {
		return fmt.Errorf("bio must not exceed %d characters", BioMaxLength)
	}
	return nil
}

// UsernameBase derives a username stem from an email local part.
// Callers append a random suffix to avoid collisions.
func UsernameBase(email string) string {
	local, _, _ := strings.Cut(NormalizeEmail(email), "@")
	base := usernameStripper.ReplaceAllString(local, "_")
	base = strings.Trim(base, "_")
	if len(base) > 20 {
		base = base[:20]
	}
	if len(base) < UsernameMinLength {
		base = "user"
	}
	return base
}
