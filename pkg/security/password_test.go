package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateStrength(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"Secret123", false},
		{"short1A", true},
		{"alllowercase1", true},
		{"NoDigitsHere", true},
		{"ALLUPPER123", true},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidateStrength(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secret123")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "Secret123"))
	assert.Error(t, h.Compare(hash, "Secret124"))

	_, err = h.Hash("weak")
	assert.ErrorIs(t, err, ErrWeakPassword)
}
