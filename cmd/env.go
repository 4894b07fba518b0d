package main

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/config"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/enrichment"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/lock"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/resilience"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
	anthropicpkg "github.com/alexisthb/gourrmet-signals-42-sub000/pkg/anthropic"
	"github.com/alexisthb/gourrmet-signals-42-sub000/pkg/gemini"
	"github.com/alexisthb/gourrmet-signals-42-sub000/pkg/manus"
)

// enrichmentEnv holds the store and the enrichment components shared by
// serve, enrich, status, watch, sweep and mcp.
type enrichmentEnv struct {
	Store     store.Store
	Requestor *enrichment.Requestor
	Poller    *enrichment.Poller
	Breakers  *resilience.Breakers
	redis     *redis.Client
}

// Close releases resources held by the environment.
func (e *enrichmentEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = "gourmet.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// initEnv validates config for mode, opens and migrates the store, and
// builds the providers once. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*enrichmentEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	env := &enrichmentEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	providers, err := buildProviders(ctx, cfg, st)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Breakers = resilience.NewBreakers(resilience.BreakerConfig{
		Threshold: cfg.Fallback.BreakerThreshold,
		Cooldown:  time.Duration(cfg.Fallback.BreakerCooldownSecs) * time.Second,
	})
	opts := []enrichment.RequestorOption{enrichment.WithBreakers(env.Breakers)}

	if cfg.Redis.Addr != "" {
		rc, err := lock.NewClient(ctx, lock.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			// Requests still work without the lock; the store's one-record
			// constraint keeps them consistent.
			zap.L().Warn("redis unavailable, request lock disabled", zap.Error(err))
		} else {
			env.redis = rc
			ttl := time.Duration(cfg.Redis.LockTTLSecs) * time.Second
			opts = append(opts, enrichment.WithLocker(lock.NewLocker(rc, "enrichment", ttl)))
			zap.L().Info("request lock enabled", zap.String("redis", cfg.Redis.Addr))
		}
	}

	env.Requestor = enrichment.NewRequestor(st, providers, opts...)
	env.Poller = enrichment.NewPoller(st, providers)
	return env, nil
}

// buildProviders resolves credentials and constructs the provider tiers.
func buildProviders(ctx context.Context, c *config.Config, st store.Store) (enrichment.Providers, error) {
	p := enrichment.Providers{
		AgentProfile:   c.Manus.AgentProfile,
		TaskMode:       c.Manus.TaskMode,
		SubmitAttempts: c.Manus.SubmitAttempts,
		TaskTTL:        c.Manus.TaskTTL(),
	}

	key, err := resolveAgentKey(ctx, c.Manus, st)
	if err != nil {
		return p, err
	}
	if key != "" {
		opts := []manus.Option{manus.WithRateLimit(c.Manus.RateLimitRPS)}
		if c.Manus.BaseURL != "" {
			opts = append(opts, manus.WithBaseURL(c.Manus.BaseURL))
		}
		p.Agent = manus.NewClient(key, opts...)
	} else {
		zap.L().Warn("manus key not configured, research agent disabled")
	}

	p.Completers, err = buildCompleters(ctx, c)
	return p, err
}

// resolveAgentKey prefers the configured key and falls back to the settings
// table.
func resolveAgentKey(ctx context.Context, c config.ManusConfig, st store.Store) (string, error) {
	if k := strings.TrimSpace(c.Key); k != "" {
		return k, nil
	}
	k, err := st.GetSetting(ctx, store.SettingManusAPIKey)
	if err != nil {
		return "", eris.Wrap(err, "read manus key setting")
	}
	return strings.TrimSpace(k), nil
}

// buildCompleters follows fallback.order, skipping backends without a key.
func buildCompleters(ctx context.Context, c *config.Config) ([]enrichment.Completer, error) {
	var out []enrichment.Completer
	for _, name := range c.Fallback.Order {
		switch name {
		case "anthropic":
			if c.Anthropic.Key == "" {
				zap.L().Debug("anthropic key not set, skipping fallback")
				continue
			}
			out = append(out, &enrichment.AnthropicCompleter{
				Client:    anthropicpkg.NewClient(c.Anthropic.Key),
				Model:     c.Anthropic.Model,
				MaxTokens: c.Anthropic.MaxTokens,
			})
		case "gemini":
			if c.Gemini.Key == "" {
				zap.L().Debug("gemini key not set, skipping fallback")
				continue
			}
			gc, err := gemini.NewClient(ctx, gemini.Config{
				APIKey:  c.Gemini.Key,
				Model:   c.Gemini.Model,
				BaseURL: c.Gemini.BaseURL,
			})
			if err != nil {
				return nil, eris.Wrap(err, "init gemini")
			}
			out = append(out, &enrichment.GeminiCompleter{Client: gc})
		default:
			return nil, eris.Errorf("unknown fallback provider %q", name)
		}
	}
	return out, nil
}
