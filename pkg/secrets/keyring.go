// Package secrets keeps the advisor API key in the operating system keyring so
// it does not have to live in config files or shell history.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	Service        = "riskboard"
	AdvisorKeyUser = "advisor_api_key"
)

var ErrNotFound = errors.New("secret not found in keyring")

func GetAdvisorKey() (string, error) {
	key, err := keyring.Get(Service, AdvisorKeyUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return strings.TrimSpace(key), nil
}

func SetAdvisorKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is required")
	}
	if err := keyring.Set(Service, AdvisorKeyUser, key); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

func DeleteAdvisorKey() error {
	err := keyring.Delete(Service, AdvisorKeyUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}
