// Package auth は認証・認可機能を提供します。
package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher はbcryptによるパスワードの一方向ハッシュ化を提供します。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher は PasswordHasher を作成します。
// costが範囲外の場合はbcryptのデフォルトコストを使用します。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash は平文パスワードからソルト付きダイジェストを生成します。
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify は平文パスワードがダイジェストと一致するかを検証します。
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
