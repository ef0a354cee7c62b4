package utils

import (
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost resolves the hashing cost once per call site. BCRYPT_COST lets
// deployments trade login latency for hash strength.
func bcryptCost() int {
	if v, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil &&
		v >= bcrypt.MinCost && v <= bcrypt.MaxCost {
		return v
	}
	return bcrypt.DefaultCost
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost())
	return string(b), err
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
