package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/integrail/gsearch/internal/build"
	"github.com/integrail/gsearch/pkg/client"
	"github.com/integrail/gsearch/pkg/config"
	"github.com/integrail/gsearch/pkg/generation"
	"github.com/integrail/gsearch/pkg/llm"
	"github.com/integrail/gsearch/pkg/logger"
	"github.com/integrail/gsearch/pkg/tui"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "gsearch",
		Version:       build.Version,
		Short:         "Ask Gemini with Google Search grounding",
		Long:          "Interactive terminal client that answers prompts with Gemini and lists the web sources it used",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startInteractive(cmd.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfg.Url, "url", "u", cfg.Url, "Gemini API base URL")
	rootCmd.PersistentFlags().StringVarP(&cfg.ApiKey, "key", "k", cfg.ApiKey, "Gemini API key (default: $GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Model, "model", "m", cfg.Model, "Model to generate content with")
	rootCmd.PersistentFlags().IntVarP(&cfg.MaxAttempts, "attempts", "a", cfg.MaxAttempts, "Max attempts per prompt (retries on 429/5xx/network errors)")
	rootCmd.PersistentFlags().DurationVar(&cfg.RetryBaseDelay, "retry-delay", cfg.RetryBaseDelay, "Base delay doubled on every retry")
	rootCmd.PersistentFlags().DurationVarP(&cfg.RequestTimeout, "timeout", "t", cfg.RequestTimeout, "Timeout of a single HTTP attempt")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file (default: temp file in interactive mode, stderr for ask)")
	rootCmd.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Generate a single answer and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(cmd.Context(), cfg, strings.Join(args, " "), cmd.OutOrStdout())
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func startInteractive(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logOut, closeLog, err := openLog(cfg.LogFile, true)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.Setup(cfg.LogLevel, logOut)

	cli := tui.BubbleClient(ctx, cfg.Model)
	orchestrator, err := newOrchestrator(ctx, cfg, log, cli)
	if err != nil {
		return err
	}
	cli.Attach(orchestrator)

	if _, err := tea.NewProgram(cli, tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrapf(err, "failed to run interactive client")
	}
	return nil
}

type stderrReporter struct {
	out io.Writer
}

func (r stderrReporter) Report(msg string) {
	fmt.Fprintln(r.out, msg)
}

func ask(ctx context.Context, cfg config.Config, prompt string, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logOut, closeLog, err := openLog(cfg.LogFile, false)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.Setup(cfg.LogLevel, logOut)

	orchestrator, err := newOrchestrator(ctx, cfg, log, stderrReporter{out: os.Stderr})
	if err != nil {
		return err
	}
	state := orchestrator.Submit(ctx, prompt)
	switch state.Status {
	case generation.StatusSucceeded:
		fmt.Fprintln(out, tui.RenderResponse(state, lipgloss.NewStyle().Bold(true)))
		return nil
	case generation.StatusFailed:
		return errors.New(state.Error)
	default:
		return errors.Errorf("prompt is empty")
	}
}

func newOrchestrator(ctx context.Context, cfg config.Config, log *slog.Logger, reporter generation.Reporter) (*generation.Orchestrator, error) {
	opts := []client.Option{client.WithLogger(log)}
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics, err := client.NewMetrics(registry)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to register metrics")
		}
		opts = append(opts, client.WithMetrics(metrics))
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to listen on metrics address %q", cfg.MetricsAddr)
		}
		serveMetrics(ctx, ln, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), log)
	}

	gemini := llm.NewGemini(log, client.NewClient(cfg.RequestTimeout, opts...), cfg.Url, cfg.ApiKey, cfg.Model)
	return generation.NewOrchestrator(gemini,
		generation.WithLogger(log),
		generation.WithReporter(reporter),
		generation.WithRequestDefaults(cfg.GenerateDefaults()),
	), nil
}

// openLog returns the log destination; interactive mode must not write logs over the terminal UI.
func openLog(path string, interactive bool) (io.Writer, func(), error) {
	if path == "" && !interactive {
		return os.Stderr, func() {}, nil
	}
	var (
		f   *os.File
		err error
	)
	if path == "" {
		f, err = os.CreateTemp(os.TempDir(), "gsearch-*.log")
	} else {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file")
	}
	return f, func() { _ = f.Close() }, nil
}
