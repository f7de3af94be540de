package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is used for both user and room passwords.
const bcryptCost = 10

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword compares a bcrypt hashed password with its plaintext version.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// CheckRoomPassword reports whether password opens a room protected by
// hash. Rooms without a hash are open to everyone.
func CheckRoomPassword(hash, password string) bool {
	if hash == "" {
		return true
	}
	if password == "" {
		return false
	}
	return ComparePassword(hash, password) == nil
}
