package user

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const maxPasswordBytes = 72

// PasswordHasher はbcryptによるパスワードのハッシュ化と照合を行う。
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordHasher はPasswordHasherを生成する。
// 範囲外のコストはbcrypt.DefaultCostに置き換える。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash はパスワードをハッシュ化する。
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare はハッシュとパスワードが一致するかを返す。
func (h *PasswordHasher) Compare(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CompareDummy はユーザーが存在しない場合に同等の計算量で照合を行う。
// 結果は常に不一致。
func (h *PasswordHasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("shelf-dummy-password"), h.cost)
		if err == nil {
			h.dummyHash = b
		}
	})
	if h.dummyHash == nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// Cost は使用中のbcryptコストを返す。
func (h *PasswordHasher) Cost() int {
	return h.cost
}
