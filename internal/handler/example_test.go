package handler_test

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	"github.com/RoGogDBD/leakcheck/internal/handler"
	"github.com/RoGogDBD/leakcheck/internal/probe"
	"github.com/RoGogDBD/leakcheck/internal/sampler"
)

// ExampleHandler_HandleFormat демонстрирует использование эндпоинта форматирования байтов.
//
// Показывает, как отправить GET-запрос на /format?bytes=N
// и получить значение в мебибайтах.
func ExampleHandler_HandleFormat() {
	h := handler.NewHandler(sampler.New(), analyzer.DefaultThresholds(), nil)

	req := httptest.NewRequest("GET", "/format?bytes=1572864", nil)
	w := httptest.NewRecorder()
	h.HandleFormat(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %s, Value: %s\n", resp.Status, string(body))
	// Output:
	// Status: 200 OK, Value: 1.50 MB
}

// ExampleHandler_HandleAnalyze демонстрирует ответ анализа при недостатке данных.
//
// Пока в журнале меньше двух измерений, эндпоинт /analyze отвечает 422.
func ExampleHandler_HandleAnalyze() {
	s := sampler.New(sampler.WithMemoryProbe(probe.UnavailableProbe{}))
	h := handler.NewHandler(s, analyzer.DefaultThresholds(), nil)

	h.HandleMeasure(httptest.NewRecorder(), httptest.NewRequest("POST", "/measure", nil))

	w := httptest.NewRecorder()
	h.HandleAnalyze(w, httptest.NewRequest("GET", "/analyze", nil))

	fmt.Printf("Status: %d, Body: %s\n", w.Code, strings.TrimSpace(w.Body.String()))
	// Output:
	// Status: 422, Body: {"error":"insufficient data"}
}

// ExampleHandler_HandleStartRun демонстрирует запуск прогона с некорректными параметрами.
func ExampleHandler_HandleStartRun() {
	h := handler.NewHandler(sampler.New(), analyzer.DefaultThresholds(), nil)

	body := strings.NewReader(`{"samples":-3,"interval":"1s"}`)
	w := httptest.NewRecorder()
	h.HandleStartRun(w, httptest.NewRequest("POST", "/run", body))

	fmt.Printf("Status: %d, Body: %s\n", w.Code, strings.TrimSpace(w.Body.String()))
	// Output:
	// Status: 400, Body: {"error":"sample count must be at least 1"}
}
