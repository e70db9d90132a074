// Package keeper wires the provider client, per-instance managers and
// the run side-channels (journal, reports, events) into backup and
// prune runs over the configured fleet.
package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/auth"
	"github.com/shilovk/yandex-cloud-tools/internal/compute"
	"github.com/shilovk/yandex-cloud-tools/internal/config"
	"github.com/shilovk/yandex-cloud-tools/internal/events"
	"github.com/shilovk/yandex-cloud-tools/internal/instance"
	"github.com/shilovk/yandex-cloud-tools/internal/journal"
	"github.com/shilovk/yandex-cloud-tools/internal/operation"
	"github.com/shilovk/yandex-cloud-tools/internal/report"
	"github.com/shilovk/yandex-cloud-tools/internal/snapshot"
)

// Options overrides the collaborators the keeper would otherwise build
// from config. Zero values mean "build the real one".
type Options struct {
	Logger  *slog.Logger
	Client  *compute.Client
	Journal journal.Store
	Reports report.Writer
	Events  events.Publisher
	Now     func() time.Time
}

// Keeper coordinates lifecycle and snapshot work across a fleet of
// instances. One keeper serves any number of runs; per-run and
// per-instance state lives on the stack of each run.
type Keeper struct {
	cfg     *config.Config
	client  *compute.Client
	waiter  *operation.Waiter
	filter  *snapshot.Filter
	journal journal.Store
	reports report.Writer
	events  events.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// New builds a keeper from config. Without an injected client it
// exchanges the OAuth token for an IAM token immediately, so a broken
// credential fails here and nowhere later.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Keeper, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	client := opts.Client
	if client == nil {
		exchanger := auth.NewExchanger(
			auth.WithEndpoint(cfg.IAMEndpoint()),
			auth.WithRetryPolicy(cfg.RetryPolicy()),
			auth.WithLogger(logger),
		)
		source := auth.NewCachingSource(exchanger, cfg.OAuthToken)
		if err := source.Prime(ctx); err != nil {
			return nil, fmt.Errorf("acquire iam token: %w", err)
		}
		client = compute.NewClient(source,
			compute.WithEndpoints(cfg.ComputeEndpoints()),
			compute.WithRetryPolicy(cfg.RetryPolicy()),
			compute.WithLogger(logger),
		)
	}

	var filter *snapshot.Filter
	if cfg.PruneFilter != "" {
		f, err := snapshot.CompileFilter(cfg.PruneFilter)
		if err != nil {
			return nil, fmt.Errorf("compile prune filter: %w", err)
		}
		filter = f
	}

	store := opts.Journal
	if store == nil {
		var err error
		store, err = openJournal(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	reports := opts.Reports
	if reports == nil {
		var err error
		reports, err = openReports(ctx, cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	publisher := opts.Events
	if publisher == nil {
		var err error
		publisher, err = openEvents(cfg, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &Keeper{
		cfg:     cfg,
		client:  client,
		waiter:  operation.NewWaiter(client, operation.WithPolicy(cfg.PollPolicy()), operation.WithLogger(logger)),
		filter:  filter,
		journal: store,
		reports: reports,
		events:  publisher,
		logger:  logger,
		now:     now,
	}, nil
}

func openJournal(ctx context.Context, cfg *config.Config) (journal.Store, error) {
	return journal.Open(ctx, cfg.Journal.Backend, cfg.Journal.Path, cfg.Journal.DSN)
}

func openReports(ctx context.Context, cfg *config.Config) (report.Writer, error) {
	switch {
	case cfg.Report.Dir != "":
		return report.NewDirWriter(cfg.Report.Dir), nil
	case cfg.Report.S3 != nil:
		s3 := cfg.Report.S3
		return report.NewS3Writer(ctx, s3.Bucket, s3.Prefix, s3.Region, s3.Endpoint)
	default:
		return report.NopWriter{}, nil
	}
}

func openEvents(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.Events.URL == "" {
		return events.NopPublisher{}, nil
	}
	subject := cfg.Events.Subject
	if subject == "" {
		subject = events.DefaultSubject
	}
	return events.NewNATSPublisher(cfg.Events.URL, subject, logger)
}

// Close releases the journal and the event connection.
func (k *Keeper) Close() error {
	k.events.Close()
	return k.journal.Close()
}

// Waiter returns the shared operation waiter.
func (k *Keeper) Waiter() *operation.Waiter { return k.waiter }

// Journal returns the run journal.
func (k *Keeper) Journal() journal.Store { return k.journal }

// Instance returns a fresh handle on one VM with its metadata cached.
func (k *Keeper) Instance(ctx context.Context, id string) (*instance.Instance, error) {
	return instance.New(ctx, k.client, id, instance.WithLogger(k.logger))
}

// ManagerFor returns the snapshot manager for an instance handle,
// carrying the configured retention window and prune filter.
func (k *Keeper) ManagerFor(inst *instance.Instance) *snapshot.Manager {
	return k.manager(inst, k.logger)
}

func (k *Keeper) manager(inst *instance.Instance, logger *slog.Logger) *snapshot.Manager {
	return snapshot.NewManager(k.client, inst, k.cfg.Lifetime,
		snapshot.WithLogger(logger),
		snapshot.WithFilter(k.filter),
		snapshot.WithNow(k.now),
	)
}

func (k *Keeper) publish(ctx context.Context, e *events.Event) {
	if err := k.events.Publish(ctx, e); err != nil {
		k.logger.Warn("event publish failed", "type", e.Type, "error", err)
	}
}

func (k *Keeper) record(ctx context.Context, rec journal.OperationRecord) {
	if err := k.journal.RecordOperation(ctx, rec); err != nil {
		k.logger.Warn("journal write failed", "error", err)
	}
}
