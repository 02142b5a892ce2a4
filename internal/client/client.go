// Package client управляет удалённой панелью диагностики по HTTP.
package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	"github.com/RoGogDBD/leakcheck/internal/config"
	"github.com/RoGogDBD/leakcheck/internal/handler"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/sampler"
	"github.com/go-resty/resty/v2"
)

var (
	// ErrNoRun возвращается, если на удалённой стороне ещё не было прогонов.
	ErrNoRun = errors.New("no diagnostic run")
	// ErrInvalidSignature возвращается, если подпись ответа не совпала.
	ErrInvalidSignature = errors.New("invalid response signature")
)

// Client — клиент панели управления.
type Client struct {
	http *resty.Client
	key  string
}

// New создаёт клиента для адреса addr (host:port или URL).
// Если key не пуст, тела запросов подписываются, а подписи ответов проверяются.
func New(addr, key string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(5 * time.Second),
		key: key,
	}
}

func (c *Client) computeHash(data []byte) string {
	h := hmac.New(sha256.New, []byte(c.key))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// do выполняет запрос с повторами и возвращает тело ответа.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*resty.Response, error) {
	var resp *resty.Response
	err := config.RetryWithBackoff(ctx, func() error {
		req := c.http.R().SetContext(ctx)
		if body != nil {
			compressed, err := config.GzipCompress(body)
			if err != nil {
				return fmt.Errorf("failed to compress body: %w", err)
			}
			req.SetHeader("Content-Type", "application/json").
				SetHeader("Content-Encoding", "gzip").
				SetBody(compressed)
		}
		if c.key != "" {
			req.SetHeader(handler.HashHeader, c.computeHash(body))
		}

		var err error
		resp, err = req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", method, path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.key != "" && resp.Header().Get("Content-Type") == "application/json" {
		got := resp.Header().Get(handler.HashHeader)
		if !hmac.Equal([]byte(got), []byte(c.computeHash(resp.Body()))) {
			return nil, ErrInvalidSignature
		}
	}
	return resp, nil
}

func decode[T any](resp *resty.Response, want int) (T, error) {
	var v T
	if resp.StatusCode() != want {
		return v, unexpectedStatus(resp)
	}
	if err := json.Unmarshal(resp.Body(), &v); err != nil {
		return v, fmt.Errorf("failed to decode response: %w", err)
	}
	return v, nil
}

func unexpectedStatus(resp *resty.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(resp.Body()))
	if json.Unmarshal(resp.Body(), &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), msg)
}

// Measure снимает измерение на удалённой стороне.
func (c *Client) Measure(ctx context.Context) (models.Measurement, error) {
	resp, err := c.do(ctx, http.MethodPost, "/measure", nil)
	if err != nil {
		return models.Measurement{}, err
	}
	return decode[models.Measurement](resp, http.StatusOK)
}

// Measurements загружает журнал измерений.
func (c *Client) Measurements(ctx context.Context) ([]models.Measurement, error) {
	resp, err := c.do(ctx, http.MethodGet, "/measurements", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]models.Measurement](resp, http.StatusOK)
}

// Analyze запрашивает вердикт удалённой стороны.
// При недостатке данных возвращает analyzer.ErrInsufficientData.
func (c *Client) Analyze(ctx context.Context) (models.Verdict, error) {
	resp, err := c.do(ctx, http.MethodGet, "/analyze", nil)
	if err != nil {
		return models.Verdict{}, err
	}
	if resp.StatusCode() == http.StatusUnprocessableEntity {
		return models.Verdict{}, analyzer.ErrInsufficientData
	}
	return decode[models.Verdict](resp, http.StatusOK)
}

// StartRun запускает прогон. Занятость удалённой стороны даёт sampler.ErrRunInProgress.
func (c *Client) StartRun(ctx context.Context, samples int, interval time.Duration) (models.RunStatus, error) {
	body, err := json.Marshal(handler.RunRequest{Samples: samples, Interval: interval.String()})
	if err != nil {
		return models.RunStatus{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/run", body)
	if err != nil {
		return models.RunStatus{}, err
	}
	if resp.StatusCode() == http.StatusConflict {
		return models.RunStatus{}, sampler.ErrRunInProgress
	}
	return decode[models.RunStatus](resp, http.StatusAccepted)
}

// RunStatus возвращает состояние последнего прогона.
func (c *Client) RunStatus(ctx context.Context) (models.RunStatus, error) {
	return c.runRequest(ctx, http.MethodGet)
}

// CancelRun отменяет последний прогон.
func (c *Client) CancelRun(ctx context.Context) (models.RunStatus, error) {
	return c.runRequest(ctx, http.MethodDelete)
}

func (c *Client) runRequest(ctx context.Context, method string) (models.RunStatus, error) {
	resp, err := c.do(ctx, method, "/run", nil)
	if err != nil {
		return models.RunStatus{}, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return models.RunStatus{}, ErrNoRun
	}
	return decode[models.RunStatus](resp, http.StatusOK)
}

// WaitRun опрашивает состояние прогона раз в poll, пока он не завершится.
func (c *Client) WaitRun(ctx context.Context, poll time.Duration) (models.RunStatus, error) {
	for {
		status, err := c.RunStatus(ctx)
		if err != nil {
			return status, err
		}
		if status.State != models.RunRunning {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(poll):
		}
	}
}
