// Package vault implements session transcript encryption at rest.
// Encrypt and Decrypt are both total functions: any failure degrades to a
// pass-through rather than raising to the caller, a deliberate
// availability-over-confidentiality choice (spec §7).
//
// Grounded on the teacher's crypto conventions in
// internal/security/signing.go (stdlib crypto primitives only, no
// third-party crypto suite) rather than a specific teacher file, since
// evoclaw has no encryption-at-rest component of its own.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	envelopePrefix = "enc:v1:"
	ivLen          = 16
	tagLen         = 16
	keyLen         = 32
	keyFileName    = ".session-key"
)

// Vault holds the cached session key and encryption toggle for a state
// directory. Safe for concurrent use.
type Vault struct {
	mu      sync.Mutex
	key     []byte
	dir     string
	enabled bool
	logger  *slog.Logger
}

// New creates a Vault rooted at stateDir. If stateDir is empty, it resolves
// per spec §6: STATE_DIR override, else $HOME/.clawdbot.
func New(stateDir string, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	if stateDir == "" {
		stateDir = ResolveStateDir()
	}
	return &Vault{
		dir:     stateDir,
		enabled: encryptionEnabled(),
		logger:  logger.With("component", "vault"),
	}
}

// ResolveStateDir implements the STATE_DIR / $HOME/.clawdbot precedence
// from spec §6.
func ResolveStateDir() string {
	if d := os.Getenv("STATE_DIR"); d != "" {
		return d
	}
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".clawdbot")
}

// encryptionEnabled implements the SESSION_ENCRYPTION global toggle.
func encryptionEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SESSION_ENCRYPTION")))
	switch v {
	case "off", "false", "0":
		return false
	default:
		return true
	}
}

// Encrypt returns the ciphertext envelope for plaintext, or plaintext
// unchanged if encryption is disabled or any step fails.
func (v *Vault) Encrypt(plaintext string) string {
	if !v.enabled {
		return plaintext
	}
	key, err := v.ensureKey()
	if err != nil {
		v.logger.Warn("encryption unavailable, storing plaintext", "error", err)
		return plaintext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return plaintext
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return plaintext
	}

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return plaintext
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ctLen := len(sealed) - tagLen
	if ctLen < 0 {
		return plaintext
	}
	ciphertext, tag := sealed[:ctLen], sealed[ctLen:]

	envelope := make([]byte, 0, ivLen+tagLen+len(ciphertext))
	envelope = append(envelope, iv...)
	envelope = append(envelope, tag...)
	envelope = append(envelope, ciphertext...)

	return envelopePrefix + base64.StdEncoding.EncodeToString(envelope)
}

// Decrypt reverses Encrypt. Any input not beginning with the envelope
// prefix, or that fails to decode/authenticate, is returned unchanged.
func (v *Vault) Decrypt(data string) string {
	if !v.enabled {
		return data
	}
	if !strings.HasPrefix(data, envelopePrefix) {
		return data
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(data, envelopePrefix))
	if err != nil || len(raw) < ivLen+tagLen {
		return data
	}

	key, err := v.ensureKey()
	if err != nil {
		return data
	}

	iv := raw[:ivLen]
	tag := raw[ivLen : ivLen+tagLen]
	ciphertext := raw[ivLen+tagLen:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return data
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return data
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return data
	}
	return string(plaintext)
}

// ensureKey returns the cached session key, generating and persisting one
// on first use.
func (v *Vault) ensureKey() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		return v.key, nil
	}

	path := filepath.Join(v.dir, keyFileName)
	if existing, err := os.ReadFile(path); err == nil && len(existing) == keyLen {
		v.key = existing
		return v.key, nil
	}

	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := writeKeyAtomic(v.dir, path, key); err != nil {
		return nil, err
	}
	v.key = key
	return v.key, nil
}

// writeKeyAtomic creates dir if needed and writes the key via a temp file +
// rename so a concurrent reader never observes a partial key.
func writeKeyAtomic(dir, path string, key []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, key, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
