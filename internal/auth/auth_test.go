package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		username string
		expected error
	}{
		{"valid", "Password123!", "agence", nil},
		{"too short", "Pa1!", "", ErrPasswordTooShort},
		{"no digit", "Password!!!", "", ErrPasswordNoDigit},
		{"no symbol", "Password123", "", ErrPasswordNoSymbol},
		{"numeric", "12345678901", "", ErrPasswordNumeric},
		{"contains username", "jean.dupont1!", "jean.dupont", ErrPasswordLikeUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidatePassword(tt.password, tt.username))
		})
	}
}

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPassword("Password123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Password123!", hash)
	assert.True(t, CheckPasswordHash("Password123!", hash))
	assert.False(t, CheckPasswordHash("Password124!", hash))
}

func TestGeneratePasswordSatisfiesPolicy(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p, err := GeneratePassword(12)
		require.NoError(t, err)
		assert.Len(t, p, 12)
		assert.NoError(t, ValidatePassword(p, ""))
		seen[p] = true
	}
	assert.Greater(t, len(seen), 45)

	short, err := GeneratePassword(4)
	require.NoError(t, err)
	assert.Len(t, short, MinPasswordLength)
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	user := &models.User{Role: models.RoleOwner, MustChangePassword: true}
	user.ID = 42

	token, expiresAt, err := m.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, models.RoleOwner, claims.Role)
	assert.True(t, claims.MustChangePassword)
}

func TestTokenRejected(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	user := &models.User{Role: models.RoleAgency}
	user.ID = 1
	token, _, err := m.Issue(user)
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
