// Package auth はパスワード検証とセッションによるログイン状態の管理を提供します。
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword は平文パスワードを bcrypt でハッシュ化します。
// ソルトはダイジェストに埋め込まれるため、呼び出しごとに結果は異なります。
func HashPassword(password string, cost int) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("auth: failed to hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword は平文パスワードを保存済みダイジェストと照合します。
// 不一致は (false, nil) であり、エラーになるのはダイジェストが壊れている場合だけです。
func VerifyPassword(password string, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("auth: malformed password digest: %w", err)
}
