// ABOUTME: Entry point for the finmcp financial advisory tool server
// ABOUTME: Serves the finance tools over MCP and runs the advisory pipeline from the command line

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/finmcp/internal/config"
	"github.com/2389/finmcp/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  __ _
 / _(_)_ __  _ __ ___   ___ _ __
| |_| | '_ \| '_ ' _ \ / __| '_ \
|  _| | | | | | | | | | (__| |_) |
|_| |_|_| |_|_| |_| |_|\___| .__/
                           |_|
`

// getConfigPath returns the path to the finmcp config file.
// Priority: FINMCP_CONFIG env var > XDG_CONFIG_HOME/finmcp/config.yaml > ~/.config/finmcp/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FINMCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "finmcp", "config.yaml")
}

// getDataPath returns the path to the finmcp data directory.
// Priority: XDG_DATA_HOME/finmcp > ~/.local/share/finmcp
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "finmcp")
}

// loadConfig reads the config file. When no file exists at the default
// location the built-in defaults are used, so a client can launch
// "finmcp serve" without running init first. An explicit FINMCP_CONFIG
// must exist.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && os.Getenv("FINMCP_CONFIG") == "" {
		cfg, err := config.Default(filepath.Join(getDataPath(), "finmcp.db"))
		if err != nil {
			return nil, "", fmt.Errorf("building default config: %w", err)
		}
		return cfg, "(defaults)", nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: finmcp <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                      Serve the finance tools over MCP (stdio or http)")
	fmt.Fprintln(w, "  init                       Create a new config file interactively")
	fmt.Fprintln(w, "  run --customer ID          Run the advisory pipeline for a customer")
	fmt.Fprintln(w, "  tools                      List the tool catalog")
	fmt.Fprintln(w, "  health                     Check a running http server")
	fmt.Fprintln(w, "  version                    Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(bufio.NewReader(os.Stdin), os.Stdout)
	case "run":
		err = runPipeline(ctx, os.Args[2:], os.Stdout)
	case "tools":
		err = runTools(os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runServe serves the protocol. Everything human-readable goes to stderr;
// with the stdio transport stdout carries nothing but protocol messages.
func runServe(ctx context.Context) error {
	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Fprint(os.Stderr, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(os.Stderr, "    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, os.Stderr)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Config:    %s\n", source)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Transport: %s", cfg.Server.Transport)
	if cfg.Server.Transport == config.TransportHTTP {
		fmt.Fprintf(os.Stderr, " on %s", cfg.Server.HTTPAddr)
	}
	fmt.Fprintln(os.Stderr)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprint(os.Stderr, "Generator: ")
	if cfg.UseTemplateGenerator() {
		yellow.Fprintln(os.Stderr, "template")
	} else {
		fmt.Fprintf(os.Stderr, "%s %s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintln(os.Stderr)

	logger.Info("starting finmcp",
		"config", source,
		"transport", cfg.Server.Transport,
		"strict_handshake", cfg.Server.StrictHandshake,
	)

	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runPipeline runs the advisory pipeline once and prints the report.
func runPipeline(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	customerID := fs.Int64("customer", 0, "customer id to advise")
	sessionID := fs.String("session", "", "session id for the interaction log (default: new uuid)")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *customerID <= 0 {
		return errors.New("--customer is required")
	}
	if *sessionID == "" {
		*sessionID = uuid.New().String()
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer gw.Shutdown(context.Background())

	report, runErr := gw.RunPipeline(ctx, *customerID, *sessionID)
	if report != nil {
		if *asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encoding report: %w", err)
			}
		} else {
			printReport(out, report)
		}
	}
	return runErr
}

// runTools prints the catalog in declaration order.
func runTools(out io.Writer) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(config.LoggingConfig{Level: "error"}, os.Stderr)

	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer gw.Shutdown(context.Background())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, def := range gw.Tools() {
		fmt.Fprintf(w, "%s\t%s\n", def.Name, def.Description)
	}
	return w.Flush()
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.Transport != config.TransportHTTP {
		return fmt.Errorf("health requires server.transport %q, got %q", config.TransportHTTP, cfg.Server.Transport)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "finmcp configuration setup")
	fmt.Fprintln(out, "==========================")
	fmt.Fprintln(out)

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "finmcp.db")

	outputFile := prompt(reader, out, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	transport := prompt(reader, out, "Transport (stdio/http)", config.TransportStdio)
	httpAddr := ""
	if transport == config.TransportHTTP {
		httpAddr = prompt(reader, out, "HTTP address", "127.0.0.1:8080")
	}
	strict := isYes(prompt(reader, out, "Require initialize before tool calls?", "no"))

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	dbPath := prompt(reader, out, "SQLite database path", defaultDbPath)
	driver := prompt(reader, out, "SQLite driver (sqlite/sqlite3)", "sqlite")

	fmt.Fprintln(out, "\n--- Language Model ---")
	provider := prompt(reader, out, "Provider (openai/template)", config.ProviderOpenAI)
	model, baseURL := "", ""
	if provider == config.ProviderOpenAI {
		model = prompt(reader, out, "Model", "gpt-4o-mini")
		baseURL = prompt(reader, out, "Base URL (leave empty for api.openai.com)", "")
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# finmcp configuration\n")
	cfg.WriteString("# Generated by finmcp init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  transport: \"%s\"\n", transport))
	if httpAddr != "" {
		cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	}
	cfg.WriteString(fmt.Sprintf("  strict_handshake: %t\n", strict))
	cfg.WriteString("  session_ttl: \"30m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: \"%s\"\n", driver))
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("tools:\n")
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("orchestrator:\n")
	cfg.WriteString("  analysis_months: 0\n")
	cfg.WriteString("  stage_timeout: \"2m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("llm:\n")
	cfg.WriteString(fmt.Sprintf("  provider: \"%s\"\n", provider))
	if model != "" {
		cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	}
	if baseURL != "" {
		cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	}
	if provider == config.ProviderOpenAI {
		cfg.WriteString("  api_key: \"${OPENAI_API_KEY}\"\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  finmcp serve")

	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}
