package security

import (
	"golang.org/x/crypto/bcrypt"

	"drivekr-wallet-backend/internal/config"
)

// ServiceKeyring authenticates backend callers by API key. Only bcrypt hashes of the keys
// are held.
type ServiceKeyring struct {
	keys []config.ServiceKey
}

func NewServiceKeyring(keys []config.ServiceKey) *ServiceKeyring {
	return &ServiceKeyring{keys: keys}
}

// Authenticate returns the name of the service that owns key.
func (r *ServiceKeyring) Authenticate(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for _, k := range r.keys {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(key)) == nil {
			return k.Name, true
		}
	}
	return "", false
}

// HashKey produces the value stored in security.service_keys[].key_hash.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
