package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "mailbot"

// Keyring item names and the environment variables that take precedence
// over them.
const (
	KeyOpenAI     = "openai-api-key"
	EnvOpenAI     = "OPENAI_API_KEY"
	EnvIMAPPass   = "MAILBOT_IMAP_PASSWORD"
	imapKeyPrefix = "imap-"
)

// ErrNotFound is returned when a secret is neither in the environment nor
// in the keyring.
var ErrNotFound = errors.New("credential not found")

// open is swapped in tests.
var open = openKeyring

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailbot/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailbot-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "mailbot " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// IMAPKey returns the keyring item name holding the password for username.
func IMAPKey(username string) string {
	return imapKeyPrefix + strings.ToLower(username)
}

// APIKey resolves the classifier API key: OPENAI_API_KEY first, then the
// keyring.
func APIKey() (string, error) {
	return lookup(EnvOpenAI, KeyOpenAI)
}

// IMAPPassword resolves the mailbox password for username:
// MAILBOT_IMAP_PASSWORD first, then the keyring.
func IMAPPassword(username string) (string, error) {
	return lookup(EnvIMAPPass, IMAPKey(username))
}

func lookup(env, key string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v, nil
	}
	v, err := Get(key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("credential %q is empty: %w", key, ErrNotFound)
	}
	return v, nil
}
