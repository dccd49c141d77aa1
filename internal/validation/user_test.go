package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "correct horse", false},
		{"Exactly Min Length", "abcdefgh", false},
		{"Exactly Max Length", strings.Repeat("b", 128), false},
		{"Too Short", "short", true},
		{"Too Long", strings.Repeat("b", 129), true},
		{"Unicode Counts Runes", "ÅÅÅÅÅÅÅÅ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("a", 31), true},
		{"Illegal Chars", "user@123", true},
		{"Starts Dash", "-user", true},
		{"Ends Underscore", "user_", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Too Long", strings.Repeat("a", 64) + "@" + strings.Repeat("b", 190) + ".com", true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
		{"Display Name Form", "Ann <ann@example.com>", true},
		{"Trailing Dot In Domain", "user@example.com.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUsernameBase(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "jane_doe", UsernameBase(" Jane.Doe@Example.com "))
	assert.Equal(t, "user", UsernameBase("x@example.com"))
	assert.Len(t, UsernameBase(strings.Repeat("a", 40)+"@example.com"), 20)
	assert.NoError(t, ValidateUsername(UsernameBase("a.b.c.d@example.com")+"_k3x9z"))
}

func TestValidateBio(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateBio(""))
	assert.Error(t, ValidateBio(strings.Repeat("x", BioMaxLength+1)))
}
