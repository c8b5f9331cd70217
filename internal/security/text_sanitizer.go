// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザー入力のテキストがHTMLマークアップを含まないことを検証する。
// bluemondayのStrictPolicyでタグを除去した結果が元のテキストと一致しない場合、
// その入力はマークアップを含むものとして扱う。入力値は書き換えない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト検証のインターフェースを定義する。
// 商品のタイトルと説明文の保存前に使用される。
type TextSanitizer interface {
	// PlainText は改行をLFに揃え前後の空白を除いたテキストを返す。
	// HTMLマークアップを含む場合はokにfalseを返す。
	// 返したテキストを再度渡すと同じ結果になる。
	PlainText(raw string) (text string, ok bool)
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// PlainText はrawがマークアップを含まなければ正規化した値を返す。
// bluemondayは文字参照を展開してから再エスケープするため、比較は双方を展開した形で行う。
func (s *textSanitizer) PlainText(raw string) (string, bool) {
	text := strings.TrimSpace(newlineReplacer.Replace(raw))
	if text == "" {
		return "", true
	}
	stripped := html.UnescapeString(s.policy.Sanitize(text))
	if stripped != html.UnescapeString(text) {
		return "", false
	}
	return text, true
}
