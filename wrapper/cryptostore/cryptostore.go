// Package cryptostore wraps an httpcachestore.EntityStore to encrypt body
// bytes at rest with AES-256-GCM, the key derived from a passphrase via
// scrypt, adapted from the teacher's security.go/wrapper/securecache. It
// only wraps entity stores: digests are computed over plaintext before the
// entity store ever sees the body (Store.Write hashes first), so wrapping
// here changes what's written under an already-computed key, not the
// content-addressing scheme.
package cryptostore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
)

// BlobStore is the subset of httpcachestore.EntityStore this wrapper
// decorates.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) bool
	Path(key string) (string, error)
}

// Store wraps a BlobStore, encrypting Save payloads and decrypting Load
// results. Delete and Path pass through unchanged: they never see body
// bytes.
type Store struct {
	next BlobStore
	gcm  cipher.AEAD
}

// New derives a key from passphrase via scrypt and wraps next.
func New(next BlobStore, passphrase string, salt []byte) (*Store, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: deriving key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptostore: creating GCM: %w", err)
	}
	return &Store{next: next, gcm: gcm}, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("cryptostore: generating nonce: %w", err)
	}
	ciphertext := s.gcm.Seal(nonce, nonce, data, nil)
	return s.next.Save(ctx, key, ciphertext)
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	ciphertext, ok, err := s.next.Load(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(ciphertext) < s.gcm.NonceSize() {
		return nil, false, fmt.Errorf("cryptostore: stored blob for %s shorter than nonce size", key)
	}
	nonce, body := ciphertext[:s.gcm.NonceSize()], ciphertext[s.gcm.NonceSize():]
	plaintext, err := s.gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, false, fmt.Errorf("cryptostore: decrypting %s: %w", key, err)
	}
	return plaintext, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) bool {
	return s.next.Delete(ctx, key)
}

func (s *Store) Path(key string) (string, error) {
	return s.next.Path(key)
}

// DefaultSalt derives a fixed salt the same way the teacher's
// initEncryption does, for callers that don't manage their own salt
// storage. A random, persisted salt is stronger; this exists so New has a
// zero-config path.
func DefaultSalt() []byte {
	sum := sha256.Sum256([]byte("httpcachestore-cryptostore-salt-v1"))
	return sum[:]
}
