// Package session persists each chat's ChurchTools login in the cache,
// sealed with a secret only the bot process knows.
package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/Craeckie/church-bot/internal/cache"
	"github.com/Craeckie/church-bot/internal/domain"
)

const saltSize = 16

const keyPrefix = "login:"

// ErrNotFound means no login is stored for the chat.
var ErrNotFound = errors.New("no login stored")

// Store seals LoginData into the cache under the chat id. Logins never
// expire on their own; Forget is the only way out.
type Store struct {
	cache  cache.Cache
	secret string
}

func NewStore(c cache.Cache, secret string) *Store {
	return &Store{cache: c, secret: secret}
}

func loginKey(chatID int64) string {
	return keyPrefix + strconv.FormatInt(chatID, 10)
}

func (s *Store) Save(ctx context.Context, login domain.LoginData) error {
	plaintext, err := json.Marshal(login)
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("salt: %w", err)
	}
	gcm, err := s.sealer(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	blob := append(append(salt, nonce...), ciphertext...)
	if err := s.cache.Set(ctx, loginKey(login.ChatID), blob, 0); err != nil {
		return fmt.Errorf("store login: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, chatID int64) (domain.LoginData, error) {
	blob, err := s.cache.Get(ctx, loginKey(chatID))
	if errors.Is(err, cache.ErrMiss) {
		return domain.LoginData{}, ErrNotFound
	}
	if err != nil {
		return domain.LoginData{}, fmt.Errorf("load login: %w", err)
	}
	if len(blob) < saltSize {
		return domain.LoginData{}, fmt.Errorf("invalid sealed login")
	}
	gcm, err := s.sealer(blob[:saltSize])
	if err != nil {
		return domain.LoginData{}, err
	}
	if len(blob) < saltSize+gcm.NonceSize() {
		return domain.LoginData{}, fmt.Errorf("invalid sealed login")
	}
	nonce := blob[saltSize : saltSize+gcm.NonceSize()]
	ciphertext := blob[saltSize+gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return domain.LoginData{}, fmt.Errorf("unseal login: %w", err)
	}
	var login domain.LoginData
	if err := json.Unmarshal(plaintext, &login); err != nil {
		return domain.LoginData{}, fmt.Errorf("unmarshal login: %w", err)
	}
	return login, nil
}

func (s *Store) Forget(ctx context.Context, chatID int64) error {
	return s.cache.Delete(ctx, loginKey(chatID))
}

// ChatIDs lists the chats with a stored login. Requires an enumerating
// backend; without one it reports none.
func (s *Store) ChatIDs(ctx context.Context) ([]int64, error) {
	lister, ok := s.cache.(cache.Lister)
	if !ok {
		return nil, nil
	}
	keys, err := lister.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list logins: %w", err)
	}
	ids := make([]int64, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, keyPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) sealer(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(s.secret), salt, 3, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}
