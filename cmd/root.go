/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moamenhredeen/oasc/internal/config"
	"github.com/moamenhredeen/oasc/internal/logging"
	"github.com/moamenhredeen/oasc/internal/parser"
	"github.com/moamenhredeen/oasc/internal/transport"
)

// Set by release ldflags.
var version = "dev"

var (
	cfgFile       string
	transportFlag string
	logLevel      string

	cfg    *config.Config
	logger *slog.Logger

	isTTY = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	// Color helpers
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oasc",
	Short: "API client driven by OpenAPI documents",
	Long: `oasc is an API client that reads an OpenAPI (or Swagger 2.0) document and
lets you explore its operations, send requests and stream server-sent events.

Requests go out directly, or through a host process started with 'oasc host'
when the calling environment cannot reach the network itself.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	v := config.NewViper(cfgFile)
	bindFlag(v, cmd, "transport", "transport.kind")
	bindFlag(v, cmd, "log-level", "log.level")
	bindFlag(v, cmd, "listen", "host.listen_addr")

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = logging.New(cfg.Log, os.Stderr)
	if path := cfg.FilePath(); path != "" {
		logger.Debug("loaded config", "path", path)
	}
	return nil
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, name, key string) {
	if f := cmd.Flags().Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

// loadDocument loads the OpenAPI document from a file or URL. With the host
// transport, remote documents are downloaded by the host process.
func loadDocument(ctx context.Context, source string) (*parser.Parser, error) {
	if source == "" {
		source = cfg.Spec
	}
	if source == "" {
		return nil, errors.New("no OpenAPI document given: pass a file or URL, or set spec in the config")
	}

	kind, err := transport.ParseKind(cfg.Transport.Kind)
	if err != nil {
		return nil, err
	}

	var fetcher parser.Fetcher = parser.NewHTTPFetcher(nil)
	if kind == transport.KindHost {
		host := transport.NewHost(transport.Options{HostURL: cfg.Host.URL, Timeout: cfg.Timeout(), Logger: logger})
		fetcher = parser.FetcherFunc(host.FetchSpec)
	}
	return parser.Load(ctx, source, fetcher)
}

func exitWithError(format string, args ...any) {
	os.Exit(printError(os.Stderr, format, args...))
}

// printError writes an error line to w and returns the exit status for it
func printError(w io.Writer, format string, args ...any) int {
	fmt.Fprintf(w, "Error "+format+"\n", args...)
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./config.toml, then the user config dir)")
	rootCmd.PersistentFlags().StringVar(&transportFlag, "transport", "", "Transport: direct or host (overrides transport.kind)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}
