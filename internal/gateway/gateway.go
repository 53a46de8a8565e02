// ABOUTME: Gateway wires the store, tool catalog, dispatcher, and advisory pipeline together
// ABOUTME: Runs the configured transport until the input closes or the context is canceled

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/finmcp/internal/builtins"
	"github.com/2389/finmcp/internal/config"
	"github.com/2389/finmcp/internal/llm"
	"github.com/2389/finmcp/internal/mcp"
	"github.com/2389/finmcp/internal/metrics"
	"github.com/2389/finmcp/internal/orchestrator"
	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

// shutdownTimeout bounds how long in-flight requests may take to drain.
const shutdownTimeout = 5 * time.Second

// Gateway owns every finmcp component for the life of the process.
type Gateway struct {
	config  *config.Config
	version string
	logger  *slog.Logger

	store        *store.SQLiteStore
	packRegistry *packs.Registry
	packRouter   *packs.Router
	dispatcher   *mcp.Dispatcher
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics

	stdio         *mcp.StdioServer
	mcpHTTP       *mcp.HTTPServer
	httpServer    *http.Server
	metricsServer *http.Server

	stdin  io.Reader
	stdout io.Writer
}

// Options overrides process-level defaults. The zero value is valid.
type Options struct {
	Version string
	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	// Generator replaces the generator selected by the llm section.
	Generator llm.Generator
}

// New creates a gateway from configuration. The store is opened and migrated
// and the finance pack registered before New returns.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:  cfg,
		version: opts.Version,
		logger:  logger,
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
	}
	if gw.version == "" {
		gw.version = "dev"
	}
	if gw.stdin == nil {
		gw.stdin = os.Stdin
	}
	if gw.stdout == nil {
		gw.stdout = os.Stdout
	}

	s, err := store.OpenSQLite(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	gw.store = s

	if err := gw.wire(opts.Generator); err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// wire builds everything that sits on top of the store.
func (g *Gateway) wire(gen llm.Generator) error {
	cfg := g.config

	if cfg.Metrics.Enabled {
		g.metrics = metrics.New()
	}

	g.packRegistry = packs.NewRegistry(g.logger.With("component", "packs"))
	if err := g.packRegistry.RegisterBuiltinPack(builtins.FinancePack(g.store)); err != nil {
		return fmt.Errorf("registering finance pack: %w", err)
	}

	routerCfg := packs.RouterConfig{
		Registry: g.packRegistry,
		Logger:   g.logger.With("component", "router"),
		Timeout:  cfg.Tools.Timeout,
	}
	if g.metrics != nil {
		routerCfg.Observer = g.metrics
	}
	g.packRouter = packs.NewRouter(routerCfg)

	dispatcher, err := mcp.NewDispatcher(mcp.Config{
		Registry:      g.packRegistry,
		Router:        g.packRouter,
		Logger:        g.logger,
		Metrics:       g.metrics,
		ServerName:    cfg.Server.Name,
		ServerVersion: g.version,
		Strict:        cfg.Server.StrictHandshake,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	g.dispatcher = dispatcher

	if gen == nil {
		gen, err = newGenerator(cfg, g.logger)
		if err != nil {
			return err
		}
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Router:         g.packRouter,
		Generator:      gen,
		Logger:         g.logger,
		Metrics:        g.metrics,
		StageTimeout:   cfg.Orchestrator.StageTimeout,
		AnalysisMonths: cfg.Orchestrator.AnalysisMonths,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	g.orchestrator = orch

	g.logger.Info("gateway wired",
		"tools", len(g.packRegistry.ListTools()),
		"driver", cfg.Database.Driver,
		"metrics", g.metrics != nil,
	)
	return nil
}

// newGenerator selects the text generator from the llm section.
func newGenerator(cfg *config.Config, logger *slog.Logger) (llm.Generator, error) {
	if cfg.UseTemplateGenerator() {
		if cfg.LLM.Provider != config.ProviderTemplate {
			logger.Warn("llm.api_key not set, using template generator")
		}
		return llm.Template{}, nil
	}

	gen, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Timeout:           cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	return gen, nil
}

// Tools returns the catalog in declaration order.
func (g *Gateway) Tools() []*packs.ToolDefinition {
	return g.packRegistry.ListTools()
}

// RunPipeline runs the advisory pipeline once for a customer.
func (g *Gateway) RunPipeline(ctx context.Context, customerID int64, sessionID string) (*orchestrator.Report, error) {
	return g.orchestrator.Run(ctx, orchestrator.RunRequest{
		CustomerID: customerID,
		SessionID:  sessionID,
	})
}

// Store exposes the finance store for maintenance commands.
func (g *Gateway) Store() store.FinanceStore {
	return g.store
}

// Run serves the configured transport and blocks until the context is canceled,
// stdin reaches EOF (stdio), or a server fails. Resources are released before
// Run returns.
func (g *Gateway) Run(ctx context.Context) error {
	errCh, err := g.startServers()
	if err != nil {
		_ = g.Shutdown(context.Background())
		return err
	}

	runErr := g.waitForShutdownSignal(ctx, errCh)
	if shutdownErr := g.gracefulShutdown(); shutdownErr != nil && runErr == nil {
		runErr = shutdownErr
	}
	return runErr
}

// startServers starts the configured transport and the optional metrics
// listener. A nil error on the channel means the transport finished cleanly.
func (g *Gateway) startServers() (chan error, error) {
	errCh := make(chan error, 2)

	switch g.config.Server.Transport {
	case config.TransportHTTP:
		ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
		if err != nil {
			return nil, fmt.Errorf("listening on HTTP address: %w", err)
		}
		if err := g.startHTTP(ln, errCh); err != nil {
			_ = ln.Close()
			return nil, err
		}
	default:
		if err := g.startMetricsListener(errCh); err != nil {
			return nil, err
		}
		if err := g.startStdio(errCh); err != nil {
			return nil, err
		}
	}
	return errCh, nil
}

func (g *Gateway) startStdio(errCh chan error) error {
	srv, err := mcp.NewStdioServer(mcp.StdioConfig{
		Dispatcher:      g.dispatcher,
		Logger:          g.logger,
		MaxMessageBytes: g.config.Server.MaxMessageBytes,
	})
	if err != nil {
		return fmt.Errorf("creating stdio transport: %w", err)
	}

	g.stdio = srv

	// stdin cannot be interrupted, so the reader is not tied to ctx. Shutdown
	// waits for the message in flight before the store is closed.
	go func() {
		err := srv.Serve(context.Background(), g.stdin, g.stdout)
		if err != nil && !errors.Is(err, mcp.ErrStdioClosed) {
			errCh <- fmt.Errorf("stdio transport: %w", err)
			return
		}
		errCh <- nil
	}()
	return nil
}

func (g *Gateway) startHTTP(ln net.Listener, errCh chan error) error {
	mcpHTTP, err := mcp.NewHTTPServer(mcp.HTTPConfig{
		Dispatcher:  g.dispatcher,
		Logger:      g.logger,
		Metrics:     g.metrics,
		MetricsPath: g.config.Metrics.Path,
		SessionTTL:  g.config.Server.SessionTTL,
		MaxBodySize: int64(g.config.Server.MaxMessageBytes),
	})
	if err != nil {
		return fmt.Errorf("creating HTTP transport: %w", err)
	}
	g.mcpHTTP = mcpHTTP
	g.httpServer = &http.Server{
		Handler:           mcpHTTP.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return nil
}

// startMetricsListener serves /metrics on metrics.addr when the protocol runs
// over stdio and there is no HTTP server to mount it on.
func (g *Gateway) startMetricsListener(errCh chan error) error {
	if g.metrics == nil || g.config.Metrics.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", g.config.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listening on metrics address: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(g.config.Metrics.Path, g.metrics.Handler())
	g.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		g.logger.Info("metrics server listening", "addr", ln.Addr().String(), "path", g.config.Metrics.Path)
		if err := g.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return nil
}

// waitForShutdownSignal waits for context cancellation or a transport result.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		if err != nil {
			g.logger.Error("server error", "error", err)
		}
		return err
	}
}

// gracefulShutdown uses a fresh context since the run context is already done.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the servers and closes the store. It is safe to call on a
// gateway that never ran.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if g.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	}
	if g.metricsServer != nil {
		errs = appendCloseError(errs, "metrics shutdown", g.metricsServer.Shutdown(ctx))
	}
	if g.stdio != nil {
		errs = appendCloseError(errs, "stdio shutdown", g.stdio.Shutdown(ctx))
	}
	if g.mcpHTTP != nil {
		g.mcpHTTP.Close()
	}
	if g.packRegistry != nil {
		g.packRegistry.Close()
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
		g.store = nil
	}

	return errors.Join(errs...)
}
