package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token はユーザーに紐づくベアラートークンを表す。
// 平文のトークンは発行時にのみクライアントへ返し、永続化するのはハッシュ値のみ。
type Token struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻においてトークンが期限切れかどうかを返す。
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
