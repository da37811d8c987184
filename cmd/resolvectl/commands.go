package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"FinResolve/internal/di"
	"FinResolve/internal/usecase"
	"FinResolve/pkg/config"
	applogger "FinResolve/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	logLevel   string
	timeout    time.Duration
	pretty     bool

	// newResolver is swapped in tests.
	newResolver func(cfg *config.Config, l *applogger.Logger) (*usecase.Resolver, error)
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{stdout: stdout, stderr: stderr, newResolver: di.InitializeResolver}
}

func (c *cli) run(args []string) int {
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "resolvectl",
		Short: "Resolve stock and crypto mentions to assets",
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "config/config.yaml", "config file path")
	pf.StringVar(&c.envFile, "env-file", ".env", "optional dotenv file")
	pf.StringVar(&c.logLevel, "log-level", "warn", "log level written to stderr")
	pf.DurationVar(&c.timeout, "timeout", 30*time.Second, "overall deadline")
	pf.BoolVar(&c.pretty, "pretty", true, "indent JSON output")

	root.AddCommand(c.resolveCommand(), c.classifyCommand(), c.preprocessCommand())
	return root
}

func (c *cli) resolveCommand() *cobra.Command {
	var query string
	var raw bool
	cmd := &cobra.Command{
		Use:   "resolve [terms...]",
		Short: "Resolve terms (or the terms found in --query) to assets",
		Example: `  resolvectl resolve AAPL
  resolvectl resolve --query "what's the price of pepe on solana?"
  resolvectl resolve ABC --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(query) == "" {
				return fmt.Errorf("give at least one term or --query")
			}
			res, err := c.resolver()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()

			if raw {
				terms := args
				if len(terms) == 0 {
					terms = usecase.PreprocessQuery(query)
				}
				return c.print(res.ResolveAssets(ctx, terms, query))
			}
			return c.print(res.Resolve(ctx, args, query))
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "free-text question the terms came from")
	cmd.Flags().BoolVar(&raw, "raw", false, "print ranked assets without disambiguation")
	return cmd
}

type classification struct {
	Term   string            `json:"term"`
	Hint   usecase.AssetHint `json:"hint"`
	Ticker bool              `json:"validTicker"`
}

func (c *cli) classifyCommand() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "classify <term>...",
		Short: "Show the asset-kind hint for each term, offline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			out := make([]classification, 0, len(args))
			for _, t := range args {
				out = append(out, classification{Term: t, Hint: usecase.Classify(t, query), Ticker: usecase.IsValidTicker(t)})
			}
			return c.print(out)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "surrounding query used for keywords")
	return cmd
}

type preprocessed struct {
	Terms  []string `json:"terms"`
	Crypto bool     `json:"crypto"`
	Chains []string `json:"chains"`
}

func (c *cli) preprocessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess <query>",
		Short: "Extract candidate terms and chains from a question, offline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			terms := usecase.PreprocessQuery(q)
			return c.print(preprocessed{
				Terms:  terms,
				Crypto: usecase.IsCryptoQuery(terms, q),
				Chains: usecase.DetectChains(q),
			})
		},
	}
}

func (c *cli) resolver() (*usecase.Resolver, error) {
	if err := godotenv.Load(c.envFile); err != nil && c.envFile != ".env" {
		return nil, fmt.Errorf("env file: %w", err)
	}
	cfg, err := config.LoadWithEnv(c.configPath)
	if err != nil {
		return nil, err
	}
	// Prometheus is pointless for a one-shot process.
	cfg.Metrics.Enabled = false

	l, err := applogger.New(&applogger.Config{Level: c.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, err
	}
	return c.newResolver(cfg, l)
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.stdout)
	if c.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
