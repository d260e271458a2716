package longpoll

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBuilderBuild(t *testing.T) {
	cfg, err := NewBuilder[string]().
		Observe(constant("x")).
		Validate(Equal[string]()).
		PollInterval(25 * time.Millisecond).
		TransactionTimeout(time.Second).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if cfg.PollInterval != 25*time.Millisecond {
		t.Errorf("PollInterval = %v, want 25ms", cfg.PollInterval)
	}
	if cfg.TransactionTimeout != time.Second {
		t.Errorf("TransactionTimeout = %v, want 1s", cfg.TransactionTimeout)
	}
	if v, ok := cfg.Observe(); !ok || v != "x" {
		t.Errorf("Observe() = %q, %t; want x, true", v, ok)
	}
}

func TestBuilderDefaults(t *testing.T) {
	cfg, err := NewBuilder[int]().Observe(constant(1)).Validate(Equal[int]()).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.TransactionTimeout != DefaultTransactionTimeout {
		t.Errorf("TransactionTimeout = %v, want %v", cfg.TransactionTimeout, DefaultTransactionTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config[int]
		wantErr string
	}{
		{"valid", Config[int]{Observe: constant(1), IsChanged: Equal[int]()}, ""},
		{"no observe", Config[int]{IsChanged: Equal[int]()}, "observe function is required"},
		{"no change func", Config[int]{Observe: constant(1)}, "change function is required"},
		{"negative interval", Config[int]{Observe: constant(1), IsChanged: Equal[int](), PollInterval: -1}, "poll interval"},
		{"negative timeout", Config[int]{Observe: constant(1), IsChanged: Equal[int](), TransactionTimeout: -1}, "transaction timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildReportsInvalidConfig(t *testing.T) {
	if _, err := NewBuilder[int]().Build(); err == nil {
		t.Fatal("Build() without callbacks should fail")
	}
}

func TestStartPanicsOnInvalidConfig(t *testing.T) {
	r := newTestRegistry[int]()
	defer func() {
		if recover() == nil {
			t.Fatal("Start with invalid config did not panic")
		}
		if r.Len() != 0 {
			t.Errorf("Len() = %d after rejected Start, want 0", r.Len())
		}
	}()
	r.Start(context.Background(), "k", time.Second, Config[int]{})
}

func TestEqual(t *testing.T) {
	changed := Equal[string]()
	if changed("a", "a") {
		t.Error("Equal()(a, a) = true, want false")
	}
	if !changed("b", "a") {
		t.Error("Equal()(b, a) = false, want true")
	}
}
