package service

import (
	"net"
	"net/http"
	"strings"
)

// TrustedSubnet пропускает только запросы с адресов из подсети trusted.
//
// Адрес берётся из заголовка X-Real-IP, а без него из RemoteAddr.
// При nil подсети проверка отключена.
func TrustedSubnet(trusted *net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if trusted == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ipString := strings.TrimSpace(r.Header.Get("X-Real-IP"))
			if ipString == "" {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				ipString = host
			}
			ip := net.ParseIP(ipString)
			if ip == nil || !trusted.Contains(ip) {
				http.Error(w, "ip not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
