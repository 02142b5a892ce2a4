package service

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrustedSubnet_TableDriven(t *testing.T) {
	_, subnet, err := net.ParseCIDR("10.0.0.0/24")
	require.NoError(t, err)

	tests := []struct {
		name       string
		subnet     *net.IPNet
		realIP     string
		remoteAddr string
		wantStatus int
	}{
		{"no subnet configured", nil, "", "192.168.1.5:4000", http.StatusOK},
		{"trusted header", subnet, "10.0.0.7", "192.168.1.5:4000", http.StatusOK},
		{"untrusted header", subnet, "10.0.1.7", "10.0.0.7:4000", http.StatusForbidden},
		{"remote addr fallback", subnet, "", "10.0.0.9:4000", http.StatusOK},
		{"garbage header", subnet, "not-an-ip", "10.0.0.9:4000", http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h := TrustedSubnet(tt.subnet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/measurements", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
