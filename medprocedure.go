// Package medprocedure provides a high-level façade over the procedure engine
// and its supporting services (sessions, memory bank, metrics & logging).
// Most applications interact with this package by:
//  1. Creating a Service via New() (optionally overriding the in-memory defaults)
//  2. Starting lookups asynchronously (Lookup) or synchronously (LookupSync)
//  3. Serving the REST surface through Handler
//
// The façade delegates orchestration to engine.Engine while keeping setup
// concise. All defaults are safe for local development and testing.
package medprocedure

import (
	"context"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/nanuguru/Med-Procedure/adapter"
	"github.com/nanuguru/Med-Procedure/adapter/anthropic"
	"github.com/nanuguru/Med-Procedure/adapter/openai"
	"github.com/nanuguru/Med-Procedure/adapter/websearch"
	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/engine"
	"github.com/nanuguru/Med-Procedure/internal/api"
	"github.com/nanuguru/Med-Procedure/internal/config"
	"github.com/nanuguru/Med-Procedure/logging"
	"github.com/nanuguru/Med-Procedure/memory"
	"github.com/nanuguru/Med-Procedure/metrics"
	"github.com/nanuguru/Med-Procedure/session"
)

// Options configures the Service.
type Options struct {
	// Engine configuration (deadline, budget, retries, recall)
	EngineConfig engine.Config

	// Adapters are queried in priority order. The memory bank is always
	// consulted last.
	Adapters []core.Adapter

	// SessionTTL expires idle sessions from the default store. Ignored when
	// SessionStore is supplied.
	SessionTTL time.Duration

	// MemoryBankSize caps the default memory bank. Ignored when Memory is
	// supplied.
	MemoryBankSize int

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore core.SessionStore
	Memory       *memory.Bank

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Service is the high-level façade aggregating the engine and its services.
type Service struct {
	opts    Options
	engine  *engine.Engine
	metrics *metrics.Collector
}

// New creates a Service with optional overrides. Any unset store is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Service {
	opts := Options{
		EngineConfig:   engine.DefaultConfig,
		SessionTTL:     time.Hour,
		MemoryBankSize: 1000,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(func(o *session.Options) {
			o.TTL = opts.SessionTTL
			o.Logger = opts.Logger
		})
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewBank(func(o *memory.Options) {
			o.MaxSize = opts.MemoryBankSize
			o.Logger = opts.Logger
		})
	}

	collector := metrics.NewCollector()
	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Adapters = opts.Adapters
		o.SessionStore = opts.SessionStore
		o.Memory = opts.Memory
		o.TracerProvider = opts.TracerProvider
		o.Logger = opts.Logger
	})
	collector.Register(eng.Callbacks())
	for _, t := range []engine.CallbackType{engine.CallbackAfterStage, engine.CallbackAdapterFault, engine.CallbackRetry, engine.CallbackOnError} {
		eng.Callbacks().RegisterCallback(engine.NewLoggingCallback(t, opts.Logger))
	}

	return &Service{opts: opts, engine: eng, metrics: collector}
}

// Engine exposes the underlying engine.
func (s *Service) Engine() *engine.Engine { return s.engine }

// Metrics exposes the metrics collector fed by engine callbacks.
func (s *Service) Metrics() *metrics.Collector { return s.metrics }

// Handler returns the REST surface, mounted at the root and under prefix.
func (s *Service) Handler(prefix string) http.Handler {
	return api.NewRouter(s.engine, s.metrics, prefix, s.opts.Logger)
}

// Lookup starts an asynchronous procedure lookup and returns its session id.
func (s *Service) Lookup(ctx context.Context, serviceName string, setting core.Setting) (string, error) {
	sess, err := s.engine.Start(ctx, serviceName, setting)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// LookupSync runs a lookup to completion. If ctx ends first the session is
// cancelled and ctx's error returned alongside the last observed state.
func (s *Service) LookupSync(ctx context.Context, serviceName string, setting core.Setting) (core.Session, error) {
	sess, err := s.engine.Start(ctx, serviceName, setting)
	if err != nil {
		return sess, err
	}

	final, err := s.engine.Wait(ctx, sess.ID)
	if err != nil {
		if cancelled, cerr := s.engine.Cancel(context.WithoutCancel(ctx), sess.ID); cerr == nil {
			final = cancelled
		}
		return final, err
	}
	if final.Status == core.StatusError && final.Error != nil {
		return final, &core.Error{Kind: final.Error.Kind, Message: final.Error.Message}
	}
	return final, nil
}

// Status returns a snapshot of the session.
func (s *Service) Status(id string) (core.Session, error) { return s.engine.Get(id) }

// Pause requests a pause at the next step boundary.
func (s *Service) Pause(id string) (core.Session, error) { return s.engine.Pause(id) }

// Resume continues a paused session.
func (s *Service) Resume(ctx context.Context, id string) (core.Session, error) {
	return s.engine.Resume(ctx, id)
}

// Cancel terminates a session.
func (s *Service) Cancel(ctx context.Context, id string) (core.Session, error) {
	return s.engine.Cancel(ctx, id)
}

// Shutdown cancels active runs and waits for them to stop.
func (s *Service) Shutdown(ctx context.Context) error { return s.engine.Shutdown(ctx) }

// AdaptersFromConfig builds the configured backends in priority order:
// language models first (Groq, OpenAI, Anthropic), then web search
// (SerpAPI, DuckDuckGo). Every adapter is wrapped in a Guard with its own
// in-flight limiter, so one busy backend never rejects calls to another.
func AdaptersFromConfig(cfg *config.Config, logger logging.Logger) []core.Adapter {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	var backends []core.Adapter
	if p := cfg.Groq; p.APIKey != "" {
		backends = append(backends, openai.NewGroq(p.APIKey, func(o *openai.Options) {
			if p.BaseURL != "" {
				o.BaseURL = p.BaseURL
			}
			if p.Model != "" {
				o.Model = p.Model
			}
		}))
	}
	if p := cfg.OpenAI; p.APIKey != "" {
		backends = append(backends, openai.New(func(o *openai.Options) {
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
			if p.Model != "" {
				o.Model = p.Model
			}
		}))
	}
	if p := cfg.Anthropic; p.APIKey != "" {
		backends = append(backends, anthropic.New(func(o *anthropic.Options) {
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
		}))
	}
	if sc := cfg.SerpAPI; sc.Enabled {
		backends = append(backends, websearch.NewSerpAPI(sc.APIKey, func(o *websearch.SerpAPIOptions) {
			if sc.Endpoint != "" {
				o.Endpoint = sc.Endpoint
			}
		}))
	}
	if sc := cfg.DuckDuckGo; sc.Enabled {
		backends = append(backends, websearch.NewDuckDuckGo(func(o *websearch.DuckDuckGoOptions) {
			if sc.Endpoint != "" {
				o.Endpoint = sc.Endpoint
			}
		}))
	}

	adapters := make([]core.Adapter, 0, len(backends))
	for _, b := range backends {
		limiter := adapter.NewRateLimiter(cfg.AdapterMaxInFlight)
		adapters = append(adapters, adapter.NewGuard(b, func(o *adapter.GuardOptions) {
			o.Timeout = cfg.AdapterTimeout
			o.Limiter = limiter
			o.Logger = logger
		}))
	}
	return adapters
}

// EngineConfigFromConfig maps service configuration onto engine.Config.
func EngineConfigFromConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig
	if cfg.SearchDeadline > 0 {
		ec.SearchDeadline = cfg.SearchDeadline
	}
	if cfg.CompactionBudget > 0 {
		ec.CompactionBudget = cfg.CompactionBudget
	}
	if cfg.MaxValidationRetries >= 0 {
		ec.MaxRetries = cfg.MaxValidationRetries
	}
	return ec
}
