package tool

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	DefaultPasswordLength = 24
	passwordAlphabet      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// GeneratePassword draws length characters uniformly from passwordAlphabet
// using crypto/rand. The result becomes a live database credential.
func GeneratePassword(length int) string {
	if length <= 0 {
		length = DefaultPasswordLength
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out)
}

// GenerateUUIDV7 returns a time-ordered id for new records.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}
