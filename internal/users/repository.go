package users

import (
	"context"
	"errors"
)

var (
	// ErrNotFound は指定されたユーザーが存在しない場合に返されます。
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail は同じメールアドレスのユーザーが既に存在する場合に返されます。
	ErrDuplicateEmail = errors.New("users: email already registered")
)

// Repository はユーザーレコードの保存と検索を定義します。
// すべての呼び出しはI/Oを伴う可能性があるため、ctx のキャンセルを尊重します。
type Repository interface {
	// Create はユーザーを保存し、採番されたIDを u.ID に書き戻します。
	Create(ctx context.Context, u *User) error
	// FindByEmail はメールアドレスでユーザーを検索します。
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID はIDでユーザーを検索します。解決できないIDは ErrNotFound です。
	FindByID(ctx context.Context, id string) (*User, error)
}
