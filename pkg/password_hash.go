package pkg

import "golang.org/x/crypto/bcrypt"

// BcryptCost is intentionally above the library default, login is
// not a hot path and the extra work factor is wanted here.
const BcryptCost = 12

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return BytesToString(bytes), err
}

// CheckPasswordHash delegates the comparison to bcrypt, which is
// constant time with respect to the submitted password.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
