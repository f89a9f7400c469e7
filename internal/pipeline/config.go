package pipeline

import (
	"time"
)

// Config controls run execution.
type Config struct {
	// Per-step timeouts, falling back to DefaultStepTimeout.
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// Retry behavior for steps that report retryable failures.
	RetryConfig RetryConfig `json:"retry_config"`

	// ContinueOnError keeps the run going past a failed step instead
	// of skipping everything downstream.
	ContinueOnError bool `json:"continue_on_error"`
}

// NewConfig returns the default run configuration.
func NewConfig() *Config {
	return &Config{
		StepTimeouts: map[string]time.Duration{
			StepIDLoad: DefaultLoadTimeout,
		},
		RetryConfig:     NewRetryConfig(),
		ContinueOnError: false,
	}
}

// StepTimeout returns the timeout for a step.
func (c *Config) StepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout overrides the timeout for a step.
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}
