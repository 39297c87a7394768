package auth

import (
	"golang.org/x/crypto/bcrypt"

	"mindquest-service/internal/app"
)

// Hasher stores passwords as bcrypt hashes.
type Hasher struct {
	cost int
}

var _ app.PasswordHasher = Hasher{}

func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

func (h Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h Hasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
