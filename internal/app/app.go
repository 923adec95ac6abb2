// Package app wires configuration, storage and the savings service into a
// running ledger.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/metrics"
	"github.com/bobmcallan/savings/internal/services/accountlock"
	"github.com/bobmcallan/savings/internal/services/savings"
	"github.com/bobmcallan/savings/internal/storage"
)

// App holds the initialized storage, service and collaborators.
// It is the shared core used by cmd/savings-server.
type App struct {
	Config         *common.Config
	Logger         *common.Logger
	Storage        interfaces.StorageManager
	Settings       *common.Settings
	Metrics        *metrics.Recorder
	SavingsService *savings.Service
	StartupTime    time.Time

	ledger          *Ledger
	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}
}

// Option overrides a default collaborator.
type Option func(*options)

type options struct {
	calculator interfaces.InterestCalculator
	bridge     interfaces.AccountingBridge
	notifier   interfaces.EventNotifier
	clock      func() time.Time
}

// WithCalculator injects the interest rate engine.
func WithCalculator(c interfaces.InterestCalculator) Option {
	return func(o *options) { o.calculator = c }
}

// WithAccountingBridge replaces the logging journal sink.
func WithAccountingBridge(b interfaces.AccountingBridge) Option {
	return func(o *options) { o.bridge = b }
}

// WithNotifier replaces the logging event sink.
func WithNotifier(n interfaces.EventNotifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock overrides the business clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, SAVINGS_CONFIG, then the
// binary dir, then the development fallback.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("SAVINGS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "savings.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/savings.toml"
		}
	}
	return configPath
}

// NewApp loads configuration and initializes storage and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(ctx context.Context, configPath string, opts ...Option) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	return newApp(ctx, config, logger, startupStart, opts...)
}

func newApp(ctx context.Context, config *common.Config, logger *common.Logger, startupStart time.Time, opts ...Option) (*App, error) {
	o := options{
		calculator: NoInterestCalculator{},
		bridge:     NewLogAccountingBridge(logger),
		notifier:   NewLogNotifier(logger),
	}
	for _, opt := range opts {
		opt(&o)
	}

	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	settings := common.NewSettings(storageManager.SystemKVStore(), config.Savings)
	recorder := metrics.NewRecorder()

	svc := savings.NewService(
		storageManager.LedgerStore(),
		storageManager.OwnerDirectory(),
		settings,
		o.calculator,
		o.bridge,
		logger,
	)
	svc.SetMetrics(recorder)
	if o.clock != nil {
		svc.SetClock(o.clock)
	}

	a := &App{
		Config:         config,
		Logger:         logger,
		Storage:        storageManager,
		Settings:       settings,
		Metrics:        recorder,
		SavingsService: svc,
		StartupTime:    startupStart,
	}
	a.ledger = &Ledger{
		store:    storageManager.LedgerStore(),
		svc:      svc,
		locks:    accountlock.New(logger, recorder),
		notifier: o.notifier,
		logger:   logger,
		now:      time.Now,
	}
	if o.clock != nil {
		a.ledger.now = o.clock
	}

	logger.Info().
		Str("backend", storageManager.Backend()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Ledger returns the account-level facade.
func (a *App) Ledger() *Ledger { return a.ledger }

// StartScheduler launches the interest posting job when an interval is
// configured. Safe to call more than once.
func (a *App) StartScheduler() {
	interval := a.Config.Scheduler.GetInterestInterval()
	if interval == 0 {
		a.Logger.Info().Msg("Interest scheduler: disabled")
		return
	}
	a.stopScheduler()

	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	a.schedulerDone = make(chan struct{})
	go func() {
		defer close(a.schedulerDone)
		startInterestScheduler(ctx, a.ledger, a.Logger, interval)
	}()
	a.Logger.Info().Dur("interval", interval).Msg("Interest scheduler: started")
}

func (a *App) stopScheduler() {
	if a.schedulerCancel == nil {
		return
	}
	a.schedulerCancel()
	<-a.schedulerDone
	a.schedulerCancel = nil
}

// Close stops background work and closes storage.
func (a *App) Close() error {
	a.stopScheduler()
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
