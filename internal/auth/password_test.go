package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := map[string]struct {
		password string
		want     bool
	}{
		"minimal valid":      {"Abcdefg!", true},
		"long passphrase":    {"correct Horse battery staple", true},
		"unicode special":    {"Passwörd€x", true},
		"no uppercase":       {"alllowercase1!", false},
		"no lowercase":       {"ALLUPPER1!", false},
		"no special":         {"NoSpecial123", false},
		"digits dont count":  {"Abcdefg1", false},
		"seven characters":   {"Abcde!g", false},
		"empty":              {"", false},
		"very long accepted": {"Aa!" + strings.Repeat("x", 4096), true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidatePassword(tc.password))
		})
	}
}

func TestValidatePassword_ShorterThanEightAlwaysRejected(t *testing.T) {
	// Every prefix of a password that is otherwise valid.
	full := "Ab!Ab!Ab!"
	for i := 0; i < minPasswordLength; i++ {
		assert.False(t, ValidatePassword(full[:i]), "length %d", i)
	}
	assert.True(t, ValidatePassword(full[:minPasswordLength]))
}
