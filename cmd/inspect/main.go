// Command inspect queries the messaging platform with the same client,
// credentials and resolution rules the worker uses. It never writes to the
// database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eduops.app/relay/core/config"
	"eduops.app/relay/internal/account"
	"eduops.app/relay/internal/model"
	"eduops.app/relay/internal/remote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	account  string
	output   string
	maxPages int
	logLevel string
}

// session is what every subcommand works with once flags are parsed.
type session struct {
	client  *remote.Client
	account model.Account
	opts    *options
	out     io.Writer
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect platform data for one company account",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.account, "account", "a", "", "Company account (COMERCIAL or SUPORTE)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "Output format (json, yaml)")
	cmd.PersistentFlags().IntVar(&opts.maxPages, "max-pages", 0, "Stop after this many pages (0 = all)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = cmd.MarkPersistentFlagRequired("account")

	cmd.AddCommand(
		managersCmd(opts),
		subscribersCmd(opts),
		conversationsCmd(opts),
		messagesCmd(opts),
		resolveNameCmd(opts),
		resolveManagerCmd(opts),
	)
	return cmd
}

func newSession(cmd *cobra.Command, opts *options) (*session, error) {
	level := slog.LevelWarn
	switch strings.ToLower(opts.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(config.ServiceTypeInspect)
	if err != nil {
		return nil, err
	}
	router, err := account.NewRouter(cfg.Accounts)
	if err != nil {
		return nil, err
	}
	creds, err := router.ResolveName(opts.account)
	if err != nil {
		return nil, err
	}

	client, err := remote.New(router, remote.Config{
		Timeout:     cfg.Remote.Timeout,
		BackoffBase: cfg.Remote.BackoffBase,
		BackoffMax:  cfg.Remote.BackoffMax,
		MaxAttempts: cfg.Remote.MaxAttempts,
		RatePerSec:  cfg.Remote.RatePerSec,
		RateBurst:   cfg.Remote.RateBurst,
		PageSize:    cfg.Remote.PageSize,
		UserAgent:   "eduops-relay-inspect/1.0",
	}, nil, log)
	if err != nil {
		return nil, err
	}

	return &session{client: client, account: creds.Account, opts: opts, out: cmd.OutOrStdout()}, nil
}

func (s *session) print(v any) error {
	switch s.opts.output {
	case "yaml":
		enc := yaml.NewEncoder(s.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", s.opts.output)
	}
}

// collect drains seq, stopping early after --max-pages pages.
func collect[T any](s *session, seq iter.Seq2[[]T, error]) ([]T, error) {
	var out []T
	n := 0
	for page, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, page...)
		n++
		if s.opts.maxPages > 0 && n >= s.opts.maxPages {
			break
		}
	}
	return out, nil
}
