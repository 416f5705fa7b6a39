package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/bobmcallan/pulse/internal/clients/eodhd"
	"github.com/bobmcallan/pulse/internal/clients/gemini"
	"github.com/bobmcallan/pulse/internal/clients/yahoo"
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/services/analysis"
	"github.com/bobmcallan/pulse/internal/services/marketdata"
	"github.com/bobmcallan/pulse/internal/storage"
)

// App holds all initialized services, clients, and the MCP server.
// It is the shared core used by cmd/pulse-server and cmd/pulse-generate.
type App struct {
	Config       *common.Config
	Logger       arbor.ILogger
	Store        interfaces.ReportStore
	LLMClient    interfaces.LLMClient
	MarketClient interfaces.MarketDataClient
	MarketData   interfaces.MarketDataService
	Analysis     interfaces.AnalysisService
	Clock        *common.MarketClock
	MCPServer    *server.MCPServer
	StartupTime  time.Time

	scheduler *Scheduler
}

// Option overrides a dependency NewApp would otherwise build from config.
type Option func(*options)

type options struct {
	llm    interfaces.LLMClient
	market interfaces.MarketDataClient
	logger arbor.ILogger
	now    func() time.Time
}

// WithLLMClient replaces the Gemini client.
func WithLLMClient(llm interfaces.LLMClient) Option {
	return func(o *options) { o.llm = llm }
}

// WithMarketDataClient replaces the configured market data provider.
func WithMarketDataClient(client interfaces.MarketDataClient) Option {
	return func(o *options) { o.market = client }
}

// WithLogger replaces the logger built from the logging config.
func WithLogger(logger arbor.ILogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces the wall-clock time source of the market clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath applies the lookup order: explicit path, PULSE_CONFIG,
// pulse.toml beside the binary, then config/pulse.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("PULSE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "pulse.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/pulse.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes clients, storage, services and
// the MCP server. configPath may be empty, in which case ResolveConfigPath
// picks the file.
func NewApp(configPath string, opts ...Option) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	binDir := getBinaryDir()
	if config.Storage.Backend != storage.BackendSurrealDB {
		config.Storage.Path = common.ResolvePath(binDir, config.Storage.Path)
	}
	config.Logging.FilePath = common.ResolvePath(binDir, config.Logging.FilePath)

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = common.NewLogger(config)
	}

	ctx := context.Background()

	store, err := storage.NewReportStore(ctx, logger, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	llm := o.llm
	if llm == nil {
		if _, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey); err != nil {
			logger.Warn().Msg("Gemini API key not configured - generation will fail until one is set")
		}
		llm = gemini.NewClient(
			common.EnvCredentialProvider("gemini_api_key", config.Clients.Gemini.APIKey),
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithTimeout(config.Clients.Gemini.GetTimeout()),
			gemini.WithLogger(logger),
		)
	}

	marketClient := o.market
	if marketClient == nil {
		marketClient = newMarketClient(config, logger)
	}
	marketService := marketdata.NewService(marketClient, logger)

	clock := common.NewMarketClock(config.Schedule)
	if o.now != nil {
		clock.WithNow(o.now)
	}

	analysisService := analysis.NewService(
		llm,
		marketService,
		store,
		clock,
		config.Analysis,
		config.Clients.Gemini.Model,
		logger,
	)

	mcpServer := server.NewMCPServer(
		"pulse",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	a := &App{
		Config:       config,
		Logger:       logger,
		Store:        store,
		LLMClient:    llm,
		MarketClient: marketClient,
		MarketData:   marketService,
		Analysis:     analysisService,
		Clock:        clock,
		MCPServer:    mcpServer,
		StartupTime:  startupStart,
	}

	a.registerTools()

	logger.Info().
		Str("startup", time.Since(startupStart).String()).
		Str("market_provider", marketClient.Name()).
		Msg("App initialized")

	return a, nil
}

// newMarketClient builds the configured provider. eodhd without a key
// falls back to yahoo, which needs none.
func newMarketClient(config *common.Config, logger arbor.ILogger) interfaces.MarketDataClient {
	mc := config.Clients.Market

	if mc.Provider == "eodhd" {
		key, err := common.ResolveAPIKey("market_api_key", mc.APIKey)
		if err == nil {
			opts := []eodhd.ClientOption{
				eodhd.WithLogger(logger),
				eodhd.WithRateLimit(mc.RateLimit),
				eodhd.WithTimeout(mc.GetTimeout()),
			}
			if mc.BaseURL != "" {
				opts = append(opts, eodhd.WithBaseURL(mc.BaseURL))
			}
			return eodhd.NewClient(key, opts...)
		}
		logger.Warn().Msg("EODHD API key not configured - falling back to yahoo")
	}

	opts := []yahoo.ClientOption{
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(mc.RateLimit),
		yahoo.WithTimeout(mc.GetTimeout()),
	}
	if mc.BaseURL != "" && mc.Provider != "eodhd" {
		opts = append(opts, yahoo.WithBaseURL(mc.BaseURL))
	}
	return yahoo.NewClient(opts...)
}

// StartScheduler launches the cron schedule when enabled in config.
func (a *App) StartScheduler() error {
	if !a.Config.Schedule.Enabled {
		a.Logger.Info().Msg("Scheduler disabled")
		return nil
	}
	a.scheduler = NewScheduler(a.Analysis, a.Clock, a.Config.Schedule, a.Logger)
	return a.scheduler.Start()
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close storage.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close report store")
		}
		a.Store = nil
	}
}

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer
	logger := a.Logger

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createListReportsTool(), handleListReports(a.Store, logger))
	s.AddTool(createGetReportTool(), handleGetReport(a.Store, logger))
	s.AddTool(createGenerateReportTool(), handleGenerateReport(a.Analysis, logger))
	s.AddTool(createGetStatusTool(), handleGetStatus(a.Analysis, a.Clock))
}
