package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEnvString тестирует функцию EnvString.
//
// Проверяются следующие сценарии:
//   - Заданное значение
//   - Пустое значение переменной окружения
//   - Переменная окружения не установлена
func TestEnvString(t *testing.T) {
	tests := []struct {
		name     string // Название теста
		set      bool   // Устанавливать ли переменную
		envValue string // Значение переменной окружения
		expected string // Ожидаемое значение результата
	}{
		{name: "value", set: true, envValue: "debug", expected: "debug"},
		{name: "empty value", set: true, envValue: "", expected: ""},
		{name: "not set", set: false, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("TEST_ENV_STRING", tt.envValue)
			}
			require.Equal(t, tt.expected, EnvString("TEST_ENV_STRING"))
		})
	}
}

// TestGetConfigFilePathWithFlag проверяет, что флаг важнее переменной окружения CONFIG.
func TestGetConfigFilePathWithFlag(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/leakcheck.yaml")

	require.Equal(t, "custom.json", GetConfigFilePathWithFlag("custom.json"))
	require.Equal(t, "/etc/leakcheck.yaml", GetConfigFilePathWithFlag(""))
}
