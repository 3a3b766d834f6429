package paramgrid

import (
	"github.com/goliatone/go-paramgrid/pkg/activity"
)

// Option configures a parameter set.
type Option func(*config)

type config struct {
	labelToExtend  string
	indexing       bool
	rates          IndexRateFunc
	validator      Validator
	logger         Logger
	activityHooks  activity.Hooks
	activityConfig *activity.Config
	initialState   map[string]any
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg config) loggerOrNoop() Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopLogger{}
}

// indexRates returns the rates applied to indexed parameters, or nil when
// indexing is off.
func (cfg config) indexRates() IndexRateFunc {
	if !cfg.indexing {
		return nil
	}
	return cfg.rates
}

func (cfg config) emitter() *activity.Emitter {
	activityCfg := activity.Config{Enabled: true, Channel: activity.DefaultChannel}
	if cfg.activityConfig != nil {
		activityCfg = *cfg.activityConfig
	}
	return activity.NewEmitter(cfg.activityHooks, activityCfg)
}

// WithLabelToExtend names the label along which missing records are
// synthesized after every adjustment.
func WithLabelToExtend(label string) Option {
	return func(cfg *config) {
		cfg.labelToExtend = label
	}
}

// WithIndexing toggles the index-rate transform for indexed parameters.
func WithIndexing(enabled bool) Option {
	return func(cfg *config) {
		cfg.indexing = enabled
	}
}

// WithIndexRates uses one rate table for every indexed parameter and turns
// indexing on.
func WithIndexRates(rates IndexRates) Option {
	return func(cfg *config) {
		if rates == nil {
			cfg.rates = nil
			return
		}
		cfg.rates = rates.Rate
		cfg.indexing = true
	}
}

// WithIndexRateFunc resolves rates per parameter and turns indexing on.
func WithIndexRateFunc(fn IndexRateFunc) Option {
	return func(cfg *config) {
		cfg.rates = fn
		cfg.indexing = fn != nil
	}
}

// WithValidator checks adjustments before they are applied.
func WithValidator(v Validator) Option {
	return func(cfg *config) {
		cfg.validator = v
	}
}

// WithLogger attaches a logger. Nil restores the no-op logger.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks. Hooks are cloned and nil
// entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	compacted := hooks.Compact()
	return func(cfg *config) {
		cfg.activityHooks = compacted
	}
}

// WithActivityConfig overrides the emission defaults. Without it hooks are
// notified on the parameters channel.
func WithActivityConfig(activityCfg activity.Config) Option {
	return func(cfg *config) {
		c := activityCfg
		cfg.activityConfig = &c
	}
}

// WithInitialState applies a label selection at construction. Values may be
// scalars or slices.
func WithInitialState(state map[string]any) Option {
	copied := make(map[string]any, len(state))
	for name, v := range state {
		copied[name] = v
	}
	return func(cfg *config) {
		cfg.initialState = copied
	}
}
