package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/canvasbuilder/internal/config"
	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/adapters/memory"
	redisstore "github.com/aretw0/canvasbuilder/pkg/adapters/redis"
	"github.com/aretw0/canvasbuilder/pkg/clarify"
	"github.com/aretw0/canvasbuilder/pkg/dialogue"
	"github.com/aretw0/canvasbuilder/pkg/intent"
	"github.com/aretw0/canvasbuilder/pkg/observability"
	"github.com/aretw0/canvasbuilder/pkg/persistence/middleware"
	"github.com/aretw0/canvasbuilder/pkg/ports"
	"github.com/aretw0/canvasbuilder/pkg/provider"
	"github.com/aretw0/canvasbuilder/pkg/resolver"
	"github.com/aretw0/canvasbuilder/pkg/runner"
	"github.com/aretw0/canvasbuilder/pkg/session"
	"github.com/aretw0/canvasbuilder/pkg/translator"
)

// App holds the components of one canvas builder process, wired from a
// config.Config.
type App struct {
	Config       config.Config
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	Provider     ports.CompletionProvider
	Classifier   *intent.Classifier
	Catalog      *memory.Catalog
	Orchestrator *dialogue.Orchestrator
	Sessions     *session.Manager

	closers []func() error
}

type appOptions struct {
	logger   *slog.Logger
	provider ports.CompletionProvider
	store    ports.SessionStore
}

// Option overrides a component NewApp would otherwise build from the config.
type Option func(*appOptions)

// WithLogger replaces the logger built from the log level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// WithProvider replaces the configured completion provider. The middleware
// chain is still applied.
func WithProvider(p ports.CompletionProvider) Option {
	return func(o *appOptions) {
		o.provider = p
	}
}

// WithStore replaces the configured session store.
func WithStore(store ports.SessionStore) Option {
	return func(o *appOptions) {
		o.store = store
	}
}

// NewApp wires the engine described by cfg. Call Close when done.
func NewApp(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	inner := o.provider
	if inner == nil {
		var err error
		inner, err = newProvider(ctx, cfg.Provider)
		if err != nil {
			return nil, err
		}
	}
	app.Provider = provider.Wrap(inner,
		provider.Cache(cfg.Provider.CacheSize, cfg.Provider.CacheTTL),
		provider.WithLogging(logger),
		provider.WithMetrics(app.Metrics),
		provider.Retry(cfg.Provider.Retries, 0),
		provider.RateLimit(cfg.Provider.RPS, cfg.Provider.Burst),
		provider.Timeout(attemptTimeout(cfg.Provider)),
	)
	app.closers = append(app.closers, func() error { return provider.Close(app.Provider) })

	catalog, err := memory.NewCatalog(cfg.Scopes...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("invalid scope catalog: %w", err)
	}
	app.Catalog = catalog

	hooks := app.Metrics.Hooks(logger)
	generator := clarify.NewGenerator(clarify.WithLogger(logger))

	app.Classifier = intent.NewClassifier(app.Provider,
		intent.WithTimeout(cfg.Provider.Timeout),
		intent.WithLogger(logger),
		intent.WithHooks(hooks),
		intent.WithQuestionGenerator(generator),
	)
	app.Orchestrator = dialogue.NewOrchestrator(app.Classifier,
		dialogue.WithResolver(resolver.New(resolver.WithCatalog(catalog), resolver.WithLogger(logger))),
		dialogue.WithTranslator(translator.New(translator.WithLogger(logger))),
		dialogue.WithGenerator(generator),
		dialogue.WithLogger(logger),
		dialogue.WithHooks(hooks),
	)

	sessions, err := app.newSessions(ctx, o.store)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Sessions = sessions

	return app, nil
}

// NewRunner creates a runner over the app's orchestrator and sessions.
func (a *App) NewRunner(opts ...runner.Option) *runner.Runner {
	all := append([]runner.Option{runner.WithLogger(a.Logger)}, opts...)
	return runner.New(a.Orchestrator, a.Sessions, all...)
}

// Close releases the provider chain and the session store connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newSessions(ctx context.Context, store ports.SessionStore) (*session.Manager, error) {
	opts := []session.Option{
		session.WithLogger(a.Logger),
		session.WithLockTTL(a.Config.Store.LockTTL),
	}

	if store == nil {
		switch a.Config.Store.Kind {
		case config.StoreRedis:
			var storeOpts []redisstore.Option
			if a.Config.Store.TTL > 0 {
				storeOpts = append(storeOpts, redisstore.WithTTL(a.Config.Store.TTL))
			}
			if a.Config.Store.Prefix != "" {
				storeOpts = append(storeOpts, redisstore.WithPrefix(a.Config.Store.Prefix))
			}
			rs := redisstore.New(a.Config.Store.Addr, a.Config.Store.Password, a.Config.Store.DB, storeOpts...)
			a.closers = append(a.closers, rs.Close)
			if err := rs.Ping(ctx); err != nil {
				return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.Store.Addr, err)
			}
			store = rs
			opts = append(opts, session.WithLocker(redisstore.NewLocker(rs.Client(), rs.Prefix())))
			a.Logger.Info("Using redis session store", "addr", a.Config.Store.Addr)
		default:
			store = memory.NewStore()
		}
	}

	mws, err := storeMiddleware(a.Config.Store)
	if err != nil {
		return nil, err
	}
	return session.NewManager(middleware.Wrap(store, mws...), opts...), nil
}

// storeMiddleware builds the at-rest protections cfg asks for. Masking runs
// before sealing.
func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if cfg.RedactPII {
		patterns := cfg.PIIPatterns
		if len(patterns) == 0 {
			patterns = middleware.DefaultPIIPatterns
		}
		pii, err := middleware.NewPIIMiddleware(patterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if len(cfg.EncryptionKey) > 0 {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: cfg.EncryptionKey})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

func newProvider(ctx context.Context, cfg config.ProviderConfig) (ports.CompletionProvider, error) {
	switch cfg.Kind {
	case config.ProviderScripted:
		replies := make([]provider.Reply, 0, len(cfg.Replies))
		for _, text := range cfg.Replies {
			replies = append(replies, provider.Reply{Text: text})
		}
		return provider.NewScripted(replies...), nil
	case config.ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing API key: set %s or use the %q provider", cfg.APIKeyEnv, config.ProviderScripted)
		}
		p, err := provider.NewGemini(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini provider: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
}

// attemptTimeout splits the classification budget across retry attempts.
func attemptTimeout(cfg config.ProviderConfig) time.Duration {
	if cfg.Timeout <= 0 || cfg.Retries <= 1 {
		return cfg.Timeout
	}
	return cfg.Timeout / time.Duration(cfg.Retries)
}
