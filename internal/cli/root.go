// Package cli implements printctl, the operator tool for the print gateway.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cuongbtq/cloudprint/internal/config"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/shared/logger"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the printctl command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "printctl",
		Short:         "Inspect and exercise the cloud print gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/api-service/config.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")

	root.AddCommand(
		newSignCommand(),
		newRenderCommand(),
		newSendCommand(opts),
		newSweepCommand(opts),
	)

	return root
}

// Execute runs printctl with os.Args
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return logger.NewDiscard()
	}
	l, err := logger.New(&logger.Config{Level: "debug", Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "verbose logging unavailable: %v\n", err)
		return logger.NewDiscard()
	}
	return l.Logger
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readContent decodes a content document; "-" reads stdin
func readContent(cmd *cobra.Command, path string) (domain.PrintContent, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.PrintContent{}, fmt.Errorf("failed to read content: %w", err)
	}

	var content domain.PrintContent
	if err := json.Unmarshal(data, &content); err != nil {
		return domain.PrintContent{}, fmt.Errorf("failed to parse content: %w", err)
	}

	if content.Copies == 0 {
		content.Copies = 1
	}
	if err := content.Validate(); err != nil {
		return domain.PrintContent{}, err
	}

	return content, nil
}
