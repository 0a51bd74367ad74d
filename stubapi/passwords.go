package stubapi

import (
	"golang.org/x/crypto/bcrypt"
)

// cost stays low here; the stub trades hash strength for test speed.
const bcryptCost = bcrypt.MinCost

func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(h), err
}

func comparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
