// Package users はユーザーの識別情報（メールアドレスとパスワードダイジェスト）を
// ドキュメントデータベースに永続化します。
package users

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// User はデータベースに保存されるユーザーレコードです。
// PasswordHash には bcrypt ダイジェストのみを保存し、平文パスワードは一切保持しません。
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"passwordHash"`
	Photo        string        `bson:"photo,omitempty"`
	Name         string        `bson:"name,omitempty"`
	Bio          string        `bson:"bio,omitempty"`
	Phone        string        `bson:"phone,omitempty"`
}

// Profile はAPIレスポンスに載せる外向きのユーザー表現です。
// ダイジェストを持つフィールド自体が存在しないため、変換漏れで漏洩することはありません。
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Photo string `json:"photo,omitempty"`
	Name  string `json:"name,omitempty"`
	Bio   string `json:"bio,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Profile は外向き表現へ変換します。
func (u *User) Profile() Profile {
	return Profile{
		ID:    u.ID.Hex(),
		Email: u.Email,
		Photo: u.Photo,
		Name:  u.Name,
		Bio:   u.Bio,
		Phone: u.Phone,
	}
}
