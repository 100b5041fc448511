package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/m4xw311/tgpt/chat"
	"github.com/m4xw311/tgpt/chat/terminal"
	"github.com/m4xw311/tgpt/config"
	"github.com/m4xw311/tgpt/errors"
	"github.com/m4xw311/tgpt/llm"
)

var version = "dev"

type options struct {
	configPath string
	logLevel   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	cmd := newRootCmd(in, out, errOut)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "tgpt",
		Short: "Chat with a language model from the terminal",
		Long: `tgpt is an interactive terminal chat client for hosted language models.

Every exchange is appended to a plain-text session file that can be loaded
again later. Type 'help' inside the chat for the list of commands.

The provider credential is read from the environment, e.g. OPENAI_API_KEY.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, opts, in, out, errOut)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to an additional config file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	return cmd
}

func runChat(ctx context.Context, opts options, in io.Reader, out, errOut io.Writer) error {
	cfg, err := config.LoadConfig(config.Options{ExplicitPath: opts.configPath})
	if err != nil {
		return errors.Wrapf(err, "error loading configuration")
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile, errOut)
	if err != nil {
		return errors.Wrapf(err, "failed to initialize logger")
	}
	defer func() { _ = logger.Sync() }()

	client, err := llm.New(ctx, cfg)
	if err != nil {
		return errors.Wrapf(err, "error initializing %s client", cfg.LLMClient)
	}
	if c, ok := client.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	logger.Info("starting chat",
		zap.String("llm", cfg.LLMClient),
		zap.String("model", cfg.Model),
		zap.String("history_mode", cfg.HistoryMode))

	state, err := chat.New(cfg, client, logger)
	if err != nil {
		return errors.Wrapf(err, "error creating session")
	}
	return terminal.New(state, in, out).Run(ctx)
}

// newLogger writes JSON to logFile when set, otherwise human-readable lines
// to errOut so they stay apart from the chat on stdout.
func newLogger(level, logFile string, errOut io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if logFile != "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.OutputPaths = []string{logFile}
		cfg.ErrorOutputPaths = []string{logFile}
		return cfg.Build()
	}

	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(errOut), lvl)), nil
}
