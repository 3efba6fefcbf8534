package mftasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/ygrebnov/mftasks/client"
	"github.com/ygrebnov/mftasks/mfconfig"
	"github.com/ygrebnov/mftasks/streams"
)

// Runner executes the MetricFlow tasks. It holds no per-call state and can be
// shared between goroutines as long as its Streams accept concurrent writes
// (Discard, Slog, Recorder, or Writers over safe writers). Concurrent calls
// writing the same config path race, last writer wins.
type Runner struct {
	newClient   client.Factory
	fs          afero.Fs
	defaultPath mfconfig.DefaultPathFunc
	streams     streams.Streams
	logger      *slog.Logger
}

// Option configures a Runner at construction time.
type Option func(*Runner)

// New constructs a Runner delegating to clients built by newClient.
// Panics if newClient is nil.
func New(newClient client.Factory, opts ...Option) *Runner {
	if newClient == nil {
		panic("mftasks: New: client factory cannot be nil")
	}
	r := &Runner{
		newClient: newClient,
		fs:        afero.NewOsFs(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.defaultPath == nil {
		r.defaultPath = mfconfig.NewHandler(mfconfig.WithHandlerStreams(r.streams)).FilePath
	}
	return r
}

// WithFs sets the filesystem configs are persisted to. Panics if fs is nil.
func WithFs(fs afero.Fs) Option {
	return func(r *Runner) {
		if fs == nil {
			panic("mftasks: WithFs: fs cannot be nil")
		}
		r.fs = fs
	}
}

// WithDefaultPath replaces the MetricFlow default config path lookup.
// Panics if fn is nil.
func WithDefaultPath(fn mfconfig.DefaultPathFunc) Option {
	return func(r *Runner) {
		if fn == nil {
			panic("mftasks: WithDefaultPath: fn cannot be nil")
		}
		r.defaultPath = fn
	}
}

// WithStreams routes config notices and warnings to s.
func WithStreams(s streams.Streams) Option {
	return func(r *Runner) {
		r.streams = s
	}
}

// WithLogger sets the task logger. A nil logger keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Materialize builds a materialization on the warehouse and returns the
// table reference reported by the client.
func (r *Runner) Materialize(ctx context.Context, p MaterializeParams) (client.SQLTable, error) {
	if err := validateName(p.MaterializationName); err != nil {
		return client.SQLTable{}, err
	}
	logger := r.logger.With("task", "materialize", "materialization", p.MaterializationName)

	mfc, err := r.prepare(ctx, logger, p.Config, p.ConfigFilePath)
	if err != nil {
		return client.SQLTable{}, err
	}

	table, err := mfc.Materialize(ctx, client.MaterializeRequest{
		MaterializationName: p.MaterializationName,
		StartTime:           p.StartTime,
		EndTime:             p.EndTime,
	})
	if err != nil {
		return client.SQLTable{}, fmt.Errorf("materialize %s: %w", p.MaterializationName, err)
	}
	logger.Info("materialization created", "table", table.String())
	return table, nil
}

// DropMaterialization drops a materialization table. It reports false when
// the table did not exist.
func (r *Runner) DropMaterialization(ctx context.Context, p DropParams) (bool, error) {
	if err := validateName(p.MaterializationName); err != nil {
		return false, err
	}
	logger := r.logger.With("task", "drop_materialization", "materialization", p.MaterializationName)

	mfc, err := r.prepare(ctx, logger, p.Config, p.ConfigFilePath)
	if err != nil {
		return false, err
	}

	dropped, err := mfc.DropMaterialization(ctx, p.MaterializationName)
	if err != nil {
		return false, fmt.Errorf("drop materialization %s: %w", p.MaterializationName, err)
	}
	logger.Info("materialization drop finished", "dropped", dropped)
	return dropped, nil
}

// ConfigFilePath resolves the config path the tasks would use for explicit.
func (r *Runner) ConfigFilePath(explicit string) string {
	return mfconfig.Resolve(explicit, r.defaultPath)
}

// prepare resolves the config path, persists cfg when supplied and builds
// the client against the resolved path.
func (r *Runner) prepare(ctx context.Context, logger *slog.Logger, cfg mfconfig.Value, explicit string) (client.Client, error) {
	path := r.ConfigFilePath(explicit)
	logger = logger.With("config_path", path)

	if !cfg.IsZero() {
		logger.Debug("persisting config", "kind", cfg.Kind().String())
		p := mfconfig.NewPersister(r.fs, mfconfig.WithPersisterStreams(r.streams))
		if err := p.Persist(cfg, path); err != nil {
			return nil, err
		}
	}

	mfc, err := r.newClient(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("create metricflow client: %w", err)
	}
	return mfc, nil
}
