// Package config assembles the knobs an engine.Completer needs to start:
// where the external-completion receiver binds, and how to reach the
// collaborators that run stage closures and invoke functions.
package config

import (
	"time"

	"github.com/opencompleter/completer/invoker"
)

// Config holds a Completer's startup configuration. Zero value is usable:
// the external-completion receiver falls back to its own defaults and no
// collaborators are wired, which is enough for graphs that only use
// in-process combinators.
type Config struct {
	ReceiverPort   int
	ReceiverPrefix string

	StageInvoker    invoker.StageInvoker
	FunctionInvoker invoker.FunctionInvoker

	WaitForCompletionTimeout time.Duration
}

// Option configures a Config.
//
// Implementations of this interface modify the configuration when applied.
type Option interface {
	Apply(*Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc is a function type that implements the Option interface.
type OptionFunc func(*Config)

// Apply applies the OptionFunc to the given Config.
func (f OptionFunc) Apply(cfg *Config) {
	f(cfg)
}

// WithReceiverPort overrides the fixed port the completion receiver binds.
func WithReceiverPort(port int) Option {
	return OptionFunc(func(cfg *Config) {
		cfg.ReceiverPort = port
	})
}

// WithReceiverPrefix overrides the path prefix completion URLs are nested
// under.
func WithReceiverPrefix(prefix string) Option {
	return OptionFunc(func(cfg *Config) {
		cfg.ReceiverPrefix = prefix
	})
}

// WithStageInvoker sets the collaborator used to run stage closures out of
// process.
func WithStageInvoker(inv invoker.StageInvoker) Option {
	return OptionFunc(func(cfg *Config) {
		cfg.StageInvoker = inv
	})
}

// WithFunctionInvoker sets the collaborator used for invokeFunction nodes.
func WithFunctionInvoker(inv invoker.FunctionInvoker) Option {
	return OptionFunc(func(cfg *Config) {
		cfg.FunctionInvoker = inv
	})
}

// WithWaitForCompletionTimeout bounds how long waitForCompletion blocks
// before giving up on a thread that never resolves.
func WithWaitForCompletionTimeout(d time.Duration) Option {
	return OptionFunc(func(cfg *Config) {
		cfg.WaitForCompletionTimeout = d
	})
}

// New builds a Config from opts, applying sane defaults first.
func New(opts ...Option) *Config {
	cfg := &Config{
		WaitForCompletionTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	return cfg
}
