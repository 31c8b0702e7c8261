package auth

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 10
	PasswordSymbols   = `!@#$%^&*(),.?":{}|<>`
)

var (
	ErrPasswordTooShort     = errors.New("password must be at least 10 characters long")
	ErrPasswordNoDigit      = errors.New("password must contain at least one digit (0-9)")
	ErrPasswordNoSymbol     = errors.New(`password must contain at least one symbol (e.g. !@#$%)`)
	ErrPasswordNumeric      = errors.New("password cannot be entirely numeric")
	ErrPasswordLikeUsername = errors.New("password is too similar to the username")
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword applies the account password policy. username may be empty.
func ValidatePassword(password, username string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	allDigits := true
	hasDigit := false
	for _, r := range password {
		if unicode.IsDigit(r) {
			hasDigit = true
		} else {
			allDigits = false
		}
	}
	if allDigits {
		return ErrPasswordNumeric
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}
	if !strings.ContainsAny(password, PasswordSymbols) {
		return ErrPasswordNoSymbol
	}

	if u := strings.ToLower(strings.TrimSpace(username)); len(u) >= 3 &&
		strings.Contains(strings.ToLower(password), u) {
		return ErrPasswordLikeUsername
	}
	return nil
}

const (
	lowerChars = "abcdefghijkmnopqrstuvwxyz"
	upperChars = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars = "23456789"
)

// GeneratePassword returns a random password of the given length that
// satisfies ValidatePassword.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		length = MinPasswordLength
	}

	all := lowerChars + upperChars + digitChars + PasswordSymbols
	required := []string{lowerChars, upperChars, digitChars, PasswordSymbols}

	out := make([]byte, 0, length)
	for _, set := range required {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates so the required classes are not always in front
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
