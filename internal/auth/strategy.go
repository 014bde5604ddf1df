package auth

import (
	"context"
	"errors"

	"github.com/yourusername/gatekeep/internal/users"
)

// 認証失敗時の理由文字列。APIレスポンスにそのまま載るため変更には注意。
// メール不存在とパスワード不一致を区別して返す仕様は既知のトレードオフであり、
// アカウント列挙を嫌う場合は両方を同じ文言に寄せる余地があります。
const (
	ReasonIncorrectEmail    = "incorrect email"
	ReasonIncorrectPassword = "incorrect password"
)

// Outcome は認証の結果です。
// User が設定されていれば成功、Reason が設定されていれば期待される失敗です。
// ストア障害などの予期しない失敗は Outcome ではなく error として返ります。
type Outcome struct {
	User   *users.User
	Reason string
}

// Success は認証が成功したかどうかを返します。
func (o Outcome) Success() bool {
	return o.User != nil
}

// Strategy はメールアドレスとパスワードによる認証を行います。
type Strategy struct {
	users users.Repository
}

// NewStrategy は Strategy を作成します。
func NewStrategy(repo users.Repository) *Strategy {
	return &Strategy{users: repo}
}

// Authenticate は資格情報を検証します。
// 誤ったパスワードはクライアントの通常入力なので、エラーではなく失敗の Outcome です。
func (s *Strategy) Authenticate(ctx context.Context, email, password string) (Outcome, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		return Outcome{Reason: ReasonIncorrectEmail}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	ok, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{Reason: ReasonIncorrectPassword}, nil
	}

	return Outcome{User: u}, nil
}
