package auth

import "golang.org/x/crypto/bcrypt"

// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hashed string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, falling back to bcrypt.DefaultCost when out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash hashes plain with the configured cost.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	return HashPassword(plain, h.cost)
}

// Matches reports whether plain matches hashed. The comparison is constant time.
func (h *BcryptHasher) Matches(plain, hashed string) bool {
	return ComparePassword(hashed, plain) == nil
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
