package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword хеширует пароль bcrypt-ом. Никаких «проверок длины вместо
// пароля» — сравнение только через bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
