package config

import (
	"net"
	"strconv"
	"strings"
)

// NetAddress представляет сетевой адрес с хостом и портом.
//
// Используется для нормализации адресов панели управления (-a и -serve).
// Реализует интерфейс flag.Value.
//
// Поля:
//   - Host: имя хоста (по умолчанию "localhost")
//   - Port: номер порта (по умолчанию 8080)
type NetAddress struct {
	Host string // Имя хоста
	Port int    // Порт
}

// String возвращает строковое представление сетевого адреса в формате host:port.
// IPv6-адреса заключаются в квадратные скобки.
func (a NetAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Set разбирает строку вида host:port и устанавливает значения Host и Port.
//
// Если порт не указан, по умолчанию используется 8080. IPv6-адрес с портом
// записывается в квадратных скобках: [::1]:8080.
// Возвращает ошибку, если порт не удаётся преобразовать в число.
func (a *NetAddress) Set(s string) error {
	host, port, hasPort := s, "", false
	switch {
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		host = strings.Trim(s, "[]")
	case strings.Count(s, ":") == 1 || strings.HasPrefix(s, "["):
		h, p, err := net.SplitHostPort(s)
		if err != nil {
			return err
		}
		host, port, hasPort = h, p, true
	}

	a.Host = host
	if !hasPort {
		a.Port = 8080
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return err
	}
	a.Port = n
	return nil
}
