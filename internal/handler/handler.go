// Package handler реализует HTTP-панель управления диагностикой.
package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	"github.com/RoGogDBD/leakcheck/internal/config"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/report"
	"github.com/RoGogDBD/leakcheck/internal/sampler"
	"go.uber.org/zap"
)

// HashHeader — заголовок с HMAC-SHA256 подписью тела.
const HashHeader = "HashSHA256"

// Sampler — операции сэмплера, нужные панели управления.
type Sampler interface {
	TakeMeasurement(ctx context.Context) models.Measurement
	Measurements() []models.Measurement
	Run(ctx context.Context, sampleCount int, interval time.Duration) (*sampler.Run, error)
	Current() (*sampler.Run, bool)
}

// RunRequest — тело запроса POST /run. Пустые поля заменяются значениями по умолчанию.
type RunRequest struct {
	Samples  int    `json:"samples"`
	Interval string `json:"interval"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler обслуживает запросы панели управления.
type Handler struct {
	sampler    Sampler
	thresholds analyzer.Thresholds
	logger     *zap.Logger
	key        string

	defaultSamples  int
	defaultInterval time.Duration
}

// NewHandler создаёт обработчик поверх сэмплера s.
func NewHandler(s Sampler, th analyzer.Thresholds, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sampler:         s,
		thresholds:      th,
		logger:          logger,
		defaultSamples:  config.DefaultSampleCount,
		defaultInterval: config.DefaultSampleInterval,
	}
}

// SetKey включает проверку подписи запросов и подпись ответов.
func (h *Handler) SetKey(key string) {
	h.key = key
}

// SetRunDefaults задаёт параметры прогона для запросов без тела.
func (h *Handler) SetRunDefaults(samples int, interval time.Duration) {
	h.defaultSamples = samples
	h.defaultInterval = interval
}

func (h *Handler) computeHash(data []byte) string {
	hash := hmac.New(sha256.New, []byte(h.key))
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}

func (h *Handler) verifyHash(body []byte, receivedHash string) bool {
	if h.key == "" {
		return true
	}
	if receivedHash == "" {
		return false
	}
	return hmac.Equal([]byte(receivedHash), []byte(h.computeHash(body)))
}

func (h *Handler) writeJSONWithHash(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if h.key != "" {
		w.Header().Set(HashHeader, h.computeHash(body))
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSONWithHash(w, status, errorResponse{Error: msg})
}

// readBody читает тело запроса, распаковывает gzip и проверяет подпись.
func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if r.Header.Get("Content-Encoding") == "gzip" {
		body, err = config.GzipDecompress(r.Body)
	} else {
		body, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if !h.verifyHash(body, r.Header.Get(HashHeader)) {
		return nil, errInvalidSignature
	}
	return body, nil
}

var errInvalidSignature = errors.New("invalid signature")

// HandleMeasure снимает одно измерение и добавляет его в журнал.
func (h *Handler) HandleMeasure(w http.ResponseWriter, r *http.Request) {
	if _, err := h.readBody(r); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSONWithHash(w, http.StatusOK, h.sampler.TakeMeasurement(r.Context()))
}

// HandleMeasurements возвращает текущий журнал измерений.
func (h *Handler) HandleMeasurements(w http.ResponseWriter, r *http.Request) {
	h.writeJSONWithHash(w, http.StatusOK, h.sampler.Measurements())
}

// HandleAnalyze анализирует текущий журнал.
// При недостатке данных отвечает 422 {"error":"insufficient data"}.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	v, err := analyzer.Analyze(h.sampler.Measurements(), h.thresholds)
	if errors.Is(err, analyzer.ErrInsufficientData) {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSONWithHash(w, http.StatusOK, v)
}

// HandleStartRun запускает диагностический прогон.
//
// Прогон не привязан к времени жизни запроса и продолжается после ответа 202.
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := RunRequest{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	samples := h.defaultSamples
	if req.Samples != 0 {
		samples = req.Samples
	}
	interval := h.defaultInterval
	if req.Interval != "" {
		interval, err = time.ParseDuration(req.Interval)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid interval")
			return
		}
	}

	run, err := h.sampler.Run(context.WithoutCancel(r.Context()), samples, interval)
	switch {
	case errors.Is(err, sampler.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, sampler.ErrInvalidSampleCount), errors.Is(err, sampler.ErrInvalidInterval):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSONWithHash(w, http.StatusAccepted, run.Status())
}

// HandleRunStatus возвращает состояние последнего прогона.
func (h *Handler) HandleRunStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := h.sampler.Current()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no diagnostic run")
		return
	}
	h.writeJSONWithHash(w, http.StatusOK, run.Status())
}

// HandleCancelRun отменяет последний прогон. Отмена завершённого прогона ничего не меняет.
func (h *Handler) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	if _, err := h.readBody(r); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, ok := h.sampler.Current()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no diagnostic run")
		return
	}
	run.Cancel()
	h.writeJSONWithHash(w, http.StatusOK, run.Status())
}

// HandleFormat форматирует ?bytes=N как мебибайты.
func (h *Handler) HandleFormat(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(r.URL.Query().Get("bytes"), 10, 64)
	if err != nil {
		http.Error(w, "invalid bytes", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report.FormatBytes(n)))
}
