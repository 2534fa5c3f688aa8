package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{
			name:     "valid username",
			username: "alice",
		},
		{
			name:     "minimum length",
			username: "abc",
		},
		{
			name:     "maximum length",
			username: strings.Repeat("a", MaxUsernameLength),
		},
		{
			name:     "unicode username",
			username: "ალისა",
		},
		{
			name:     "too short",
			username: "ab",
			wantErr:  true,
		},
		{
			name:     "too long",
			username: strings.Repeat("a", MaxUsernameLength+1),
			wantErr:  true,
		},
		{
			name:     "empty",
			username: "",
			wantErr:  true,
		},
		{
			name:     "invalid utf8",
			username: "ali\xffce",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUsername) {
					t.Errorf("ValidateUsername(%q) error = %v, want ErrInvalidUsername", tt.username, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateUsername(%q) unexpected error: %v", tt.username, err)
			}
		})
	}
}
