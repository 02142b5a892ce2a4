package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// retryIntervals определяет интервалы ожидания между попытками повторения операции.
var retryIntervals = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// RetryWithBackoff выполняет функцию op с повторными попытками и растущей задержкой между ними.
//
// Если функция op возвращает временную сетевую ошибку, происходит повторная
// попытка с увеличивающимся интервалом ожидания. Остальные ошибки возвращаются сразу.
// Если все попытки исчерпаны, возвращается последняя ошибка; при отмене ctx — ctx.Err().
//
// ctx — контекст для управления временем жизни попыток.
// op  — функция, которую требуется выполнить с повторными попытками.
func RetryWithBackoff(ctx context.Context, op func() error) error {
	var lastErr error
	for i, wait := range retryIntervals {
		err := op()
		if err == nil {
			return nil
		}
		if !isRetriableError(err) {
			return err
		}
		lastErr = err
		zap.L().Warn("retriable error",
			zap.Error(err),
			zap.Int("attempt", i+1),
			zap.Int("attempts", len(retryIntervals)),
			zap.Duration("retry_in", wait),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("operation failed after retries: %w", lastErr)
}

// isRetriableError определяет, является ли ошибка временной сетевой ошибкой:
// отказ в соединении, сброс соединения или таймаут.
func isRetriableError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
