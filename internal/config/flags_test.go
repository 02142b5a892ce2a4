package config

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNetAddress_SetAndString_TableDriven проверяет методы Set и String структуры NetAddress с помощью табличных тестов.
//
// Для каждого тестового случая проверяется корректность разбора строки адреса, установка host и port,
// а также корректность строкового представления адреса. Также тестируется обработка ошибочных входных данных.
func TestNetAddress_SetAndString_TableDriven(t *testing.T) {
	tests := []struct {
		name      string // Название теста
		input     string // Входная строка для метода Set
		exHost    string // Ожидаемый host после Set
		exPort    int    // Ожидаемый port после Set
		expectErr bool   // Ожидается ли ошибка
	}{
		{"host:port", "localhost:9000", "localhost", 9000, false},
		{"only host", "example", "example", 8080, false},
		{"empty string", "", "", 8080, false},
		{"empty host with port", ":9090", "", 9090, false},
		{"bad port", "host:notaport", "", 0, true},
		{"ipv6 with port", "[::1]:9000", "::1", 9000, false},
		{"ipv6 bracketed without port", "[fe80::1]", "fe80::1", 8080, false},
		{"bare ipv6", "::1", "::1", 8080, false},
		{"unterminated bracket", "[::1:9000", "", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var a NetAddress
			err := a.Set(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error for input %q, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for input %q: %v", tt.input, err)
			}
			if a.Host != tt.exHost {
				t.Fatalf("host mismatch: expected %q, got %q", tt.exHost, a.Host)
			}
			if a.Port != tt.exPort {
				t.Fatalf("port mismatch: expected %d, got %d", tt.exPort, a.Port)
			}
			expectedStr := net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
			if a.String() != expectedStr {
				t.Fatalf("String() mismatch: expected %q, got %q", expectedStr, a.String())
			}
		})
	}
}

func TestConfig_ValidateIPv6Address(t *testing.T) {
	cfg := Default()
	cfg.Address = "[::1]:8080"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "[::1]:8080", cfg.Address)

	cfg = Default()
	cfg.Serve = "::1"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "[::1]:8080", cfg.Serve)
}
