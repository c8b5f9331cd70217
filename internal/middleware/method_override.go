package middleware

import (
	"net/http"
	"strings"
)

// methodOverrideHeader はHTTPメソッド上書き用ヘッダー。
const methodOverrideHeader = "X-HTTP-Method-Override"

// overridableMethods はPOSTから上書きできるメソッド。
var overridableMethods = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// NewMethodOverrideMiddleware はPOSTリクエストのメソッドを
// クエリパラメータ_methodまたはX-HTTP-Method-Overrideヘッダーの値で上書きする。
// multipartフォームでPUTを送れないクライアント向け。ルーティングより前に配置する。
func NewMethodOverrideMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				override := r.URL.Query().Get("_method")
				if override == "" {
					override = r.Header.Get(methodOverrideHeader)
				}
				override = strings.ToUpper(strings.TrimSpace(override))
				if overridableMethods[override] {
					r.Method = override
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
