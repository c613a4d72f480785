package encryption

import (
	"fmt"

	"fwatch-go/internal/config"
	"fwatch-go/internal/fwatch"
)

// NewEncryptorFromConfig picks the encryptor implementation named by
// cfg.Type. The zero value selects age, matching configs written by init.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (fwatch.Encryptor, error) {
	switch cfg.Type {
	case "", "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewFakeEncryptor(), nil
	}
	return nil, fmt.Errorf("encryption type %q is not supported", cfg.Type)
}
