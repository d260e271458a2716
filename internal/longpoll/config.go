package longpoll

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultPollInterval       = 100 * time.Millisecond
	DefaultTransactionTimeout = 30 * time.Second
	DefaultLifetime           = time.Minute
)

// ObserveFunc samples the observed state. ok=false means nothing could be
// observed this cycle.
type ObserveFunc[T any] func() (value T, ok bool)

// ChangeFunc reports whether candidate counts as an update over previous.
type ChangeFunc[T any] func(candidate, previous T) bool

// Equal returns a ChangeFunc that treats any difference as an update.
func Equal[T comparable]() ChangeFunc[T] {
	return func(candidate, previous T) bool {
		return candidate != previous
	}
}

// Config is the immutable bundle a session is built from. Sessions keep
// their own copy, so changing a Config after Start has no effect.
type Config[T any] struct {
	Observe            ObserveFunc[T]
	IsChanged          ChangeFunc[T]
	PollInterval       time.Duration
	TransactionTimeout time.Duration
}

// Validate checks that the callbacks are set and the durations are usable.
func (c Config[T]) Validate() error {
	var errs []error
	if c.Observe == nil {
		errs = append(errs, errors.New("observe function is required"))
	}
	if c.IsChanged == nil {
		errs = append(errs, errors.New("change function is required"))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll interval %v is negative", c.PollInterval))
	}
	if c.TransactionTimeout < 0 {
		errs = append(errs, fmt.Errorf("transaction timeout %v is negative", c.TransactionTimeout))
	}
	return errors.Join(errs...)
}

func (c Config[T]) withDefaults() Config[T] {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.TransactionTimeout == 0 {
		c.TransactionTimeout = DefaultTransactionTimeout
	}
	return c
}

// Builder assembles a Config step by step.
type Builder[T any] struct {
	cfg Config[T]
}

func NewBuilder[T any]() *Builder[T] {
	return &Builder[T]{}
}

func (b *Builder[T]) Observe(fn ObserveFunc[T]) *Builder[T] {
	b.cfg.Observe = fn
	return b
}

// Validate sets the change predicate.
func (b *Builder[T]) Validate(fn ChangeFunc[T]) *Builder[T] {
	b.cfg.IsChanged = fn
	return b
}

func (b *Builder[T]) PollInterval(d time.Duration) *Builder[T] {
	b.cfg.PollInterval = d
	return b
}

func (b *Builder[T]) TransactionTimeout(d time.Duration) *Builder[T] {
	b.cfg.TransactionTimeout = d
	return b
}

// Build returns the assembled Config with zero durations replaced by the
// package defaults.
func (b *Builder[T]) Build() (Config[T], error) {
	cfg := b.cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config[T]{}, fmt.Errorf("invalid long-poll config: %w", err)
	}
	return cfg, nil
}
