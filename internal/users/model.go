// Package users は学科ポータルの利用者アカウントの保存と検索を提供します。
package users

import "time"

// RoleStudent は新規登録時に割り当てられるデフォルトのロールです。
const RoleStudent = "student"

// User はアカウント1件を表します。PasswordHash はbcryptダイジェストであり、
// APIレスポンスには決して含めません。
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
