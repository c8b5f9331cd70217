package product

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/shelf/internal/model"
	"github.com/shopspring/decimal"
)

const maxTitleLength = 255

// maxCost はNUMERIC(12,2)に収まる上限（この値未満）。
var maxCost = decimal.New(1, 10)

// normalizeTitle はタイトルを正規化し、理由付きで検証する。
func (s *Service) normalizeTitle(raw string) (string, string) {
	title, ok := s.sanitizer.PlainText(raw)
	switch {
	case !ok:
		return "", model.ReasonInvalid
	case title == "":
		return "", model.ReasonRequired
	case utf8.RuneCountInString(title) > maxTitleLength:
		return "", model.ReasonTooLong
	}
	return title, ""
}

// normalizeDescription は説明文を正規化する。マークアップを含む場合は理由を返す。
func (s *Service) normalizeDescription(raw string) (string, string) {
	desc, ok := s.sanitizer.PlainText(raw)
	if !ok {
		return "", model.ReasonInvalid
	}
	return desc, ""
}

// parseCost は金額文字列を検証し、小数点以下2桁の値に変換する。
func parseCost(raw string) (decimal.Decimal, string) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, model.ReasonInvalid
	}
	if d.IsNegative() {
		return decimal.Zero, model.ReasonNegative
	}
	if !d.Equal(d.Round(2)) || d.GreaterThanOrEqual(maxCost) {
		return decimal.Zero, model.ReasonInvalid
	}
	return d.Round(2), ""
}

// present は値が送信され、空白以外を含むかどうかを返す。
func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
