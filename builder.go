package sessioncore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/demio-app/sessioncore/internal/stores"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure during initialization, call Build
// once, then treat the result as immutable.
type Builder struct {
	config Config
	redis  *redis.Client

	gateway  IdentityGateway
	profiles ProfileStore
	sink     NotifySink
	logger   *slog.Logger

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis wires the client backing the challenge and pending-profile stores.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithGateway wires the identity gateway. Required.
func (b *Builder) WithGateway(gw IdentityGateway) *Builder {
	b.gateway = gw
	return b
}

// WithProfileStore wires the profile persistence. Required.
func (b *Builder) WithProfileStore(ps ProfileStore) *Builder {
	b.profiles = ps
	return b
}

// WithNotifySink wires the flow-event sink and enables event dispatch.
func (b *Builder) WithNotifySink(sink NotifySink) *Builder {
	b.sink = sink
	b.config.Notify.Enabled = true
	return b
}

// WithLogger wires a structured logger for best-effort warnings.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles counter metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and dependencies and constructs the
// Engine. A Builder can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.gateway == nil {
		return nil, errors.New("identity gateway required")
	}
	if b.profiles == nil {
		return nil, errors.New("profile store required")
	}

	engine := &Engine{
		config:   cfg,
		gateway:  b.gateway,
		profiles: b.profiles,
		now:      time.Now,
	}
	engine.challenges = stores.NewChallengeStore(b.redis, cfg.Challenge.RedisPrefix)
	engine.pending = stores.NewPendingProfileStore(b.redis, cfg.PendingProfile.RedisPrefix)
	engine.notify = newNotifyDispatcher(cfg.Notify, b.sink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.logger = b.logger

	b.built = true

	return engine, nil
}
