// Package service собирает HTTP-роутер панели управления диагностикой.
package service

import (
	"net"

	"github.com/RoGogDBD/leakcheck/internal/config"
	"github.com/RoGogDBD/leakcheck/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter создает и настраивает HTTP-роутер панели управления.
//
// Параметры:
//   - h: обработчик запросов (handler.Handler)
//   - logger: логгер для логирования запросов
//   - trusted: доверенная подсеть; nil отключает проверку адреса
//
// Возвращает:
//   - *chi.Mux: настроенный роутер; приложения монтируют его, например, под /debug/leakcheck
func NewRouter(h *handler.Handler, logger *zap.Logger, trusted *net.IPNet) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)          // Добавляет уникальный идентификатор запроса
	r.Use(TrustedSubnet(trusted))        // Отсекает адреса вне доверенной подсети
	r.Use(middleware.RealIP)             // Определяет реальный IP клиента
	r.Use(config.RequestLogger(logger))  // Логирует запросы с помощью zap
	r.Use(middleware.Recoverer)          // Восстанавливает после паники
	r.Use(config.GzipResponseMiddleware) // Сжимает JSON-ответы

	r.Post("/measure", h.HandleMeasure)
	r.Get("/measurements", h.HandleMeasurements)
	r.Get("/analyze", h.HandleAnalyze)
	r.Get("/format", h.HandleFormat)

	r.Route("/run", func(r chi.Router) {
		r.Post("/", h.HandleStartRun)
		r.Get("/", h.HandleRunStatus)
		r.Delete("/", h.HandleCancelRun)
	})

	return r
}
