// Package credential は通知サービスへのアクセストークンをOSのキーリングに保存する。
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "opsdesk"
	tokenKey    = "access_token"
)

// ErrNoToken はトークンが保存されていない場合のエラー。
var ErrNoToken = errors.New("アクセストークンが保存されていません")

// Store はキーリング上のトークン保存先。
type Store struct {
	ring keyring.Keyring
}

// Open はOSのキーリングを開く。
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/opsdesk/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("opsdesk-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("キーリングのオープンに失敗: %w", err)
	}
	return New(ring), nil
}

// New は任意のキーリングを使うStoreを生成する。
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Token は保存されたトークンを返す。
func (s *Store) Token() (string, error) {
	item, err := s.ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("トークンの取得に失敗: %w", err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoToken
	}
	return string(item.Data), nil
}

// SetToken はトークンを保存する。
func (s *Store) SetToken(token string) error {
	if token == "" {
		return errors.New("空のトークンは保存できません")
	}
	if err := s.ring.Set(keyring.Item{
		Key:         tokenKey,
		Data:        []byte(token),
		Label:       "opsdesk access token",
		Description: "通知サービスのアクセストークン",
	}); err != nil {
		return fmt.Errorf("トークンの保存に失敗: %w", err)
	}
	return nil
}

// DeleteToken はトークンを削除する。保存されていない場合も成功とする。
func (s *Store) DeleteToken() error {
	if err := s.ring.Remove(tokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("トークンの削除に失敗: %w", err)
	}
	return nil
}
