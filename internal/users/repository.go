package users

import (
	"context"
	"errors"
)

var (
	// ErrNotFound は該当するユーザーが存在しない場合に返されます。
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail は email の一意制約に違反した場合に返されます。
	ErrDuplicateEmail = errors.New("email already registered")
)

// Repository はアカウントのデータアクセスの契約です。
// 更新・削除の操作は提供しません（プロフィール編集・退会機能は存在しないため）。
type Repository interface {
	// Create はユーザーを1件挿入します。emailが既に存在する場合は
	// ErrDuplicateEmail を返します。
	Create(ctx context.Context, user *User) (*User, error)
	// GetByEmail は email でユーザーを検索します。見つからない場合は ErrNotFound。
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByID は id でユーザーを検索します。見つからない場合は ErrNotFound。
	GetByID(ctx context.Context, id string) (*User, error)
}
