package errors

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []ErrorCode
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []ErrorCode{
			ErrCodeNetwork,
			ErrCodeTimeout,
		},
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func() error

// RetryWithConfig retries a function with custom configuration
func RetryWithConfig(ctx context.Context, fn RetryFunc, config *RetryConfig) error {
	op := &RetryOperation{Name: "retry", Fn: fn, Config: config}
	return op.Execute(ctx)
}

// isRetryableError checks if an error is retryable based on configuration
func isRetryableError(err error, retryableCodes []ErrorCode) bool {
	var chainErr *ChainError
	if As(err, &chainErr) {
		for _, code := range retryableCodes {
			if chainErr.Code == code {
				return true
			}
		}
		return chainErr.IsRetryable()
	}
	return IsRetryable(err)
}

// RetryOperation represents an operation that can be retried
type RetryOperation struct {
	Name    string
	Fn      RetryFunc
	Config  *RetryConfig
	OnRetry func(attempt int, err error)
}

// Execute runs the retry operation. Non-retryable errors are returned as-is;
// exhausting the attempts wraps the last error with the attempt count.
func (op *RetryOperation) Execute(ctx context.Context) error {
	if op.Config == nil {
		op.Config = DefaultRetryConfig()
	}

	var lastErr error
	delay := op.Config.InitialDelay

	for attempt := 1; attempt <= op.Config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := op.Fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err, op.Config.RetryableErrors) {
			return err
		}
		if attempt == op.Config.MaxAttempts {
			break
		}
		if op.OnRetry != nil {
			op.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * op.Config.Multiplier)
		if delay > op.Config.MaxDelay {
			delay = op.Config.MaxDelay
		}
	}

	if lastErr == nil {
		return nil
	}
	return WrapChainError(
		lastErr,
		ErrCodeNetwork,
		"",
		"operation '"+op.Name+"' failed after retries",
	).WithContext("attempts", op.Config.MaxAttempts)
}
