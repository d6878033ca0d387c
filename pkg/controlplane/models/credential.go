package models

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt cost parameter for password hashing.
const DefaultBcryptCost = 10

// Password length constraints. bcrypt silently truncates input at 72
// bytes, so the upper bound is enforced here.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// Password validation errors.
var (
	// ErrInvalidCredentials is returned when credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPasswordTooShort is returned when a password is too short.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

	// ErrPasswordTooLong is returned when a password is too long.
	ErrPasswordTooLong = fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
)

// ValidatePassword checks the password against the length constraints.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a candidate password against a stored hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Admin bootstrap settings.
const (
	// AdminUsername is the built-in administrator account name.
	AdminUsername = "admin"

	// EnvAdminInitialPassword sets the initial admin password instead of
	// generating a random one on first start.
	EnvAdminInitialPassword = "CASKFS_ADMIN_PASSWORD"
)

// GetOrGenerateAdminPassword returns the admin password from the
// environment, or a freshly generated random one.
func GetOrGenerateAdminPassword() (string, error) {
	if password := os.Getenv(EnvAdminInitialPassword); password != "" {
		if err := ValidatePassword(password); err != nil {
			return "", fmt.Errorf("%s: %w", EnvAdminInitialPassword, err)
		}
		return password, nil
	}

	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DefaultAdminUser builds the bootstrap admin account.
func DefaultAdminUser(passwordHash string) *User {
	return &User{
		Username:     AdminUsername,
		PasswordHash: passwordHash,
		Enabled:      true,
		Role:         string(RoleAdmin),
	}
}
