package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/reelqueue/platform/pkg/app"
	"github.com/reelqueue/platform/pkg/common/config"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/history"
	"github.com/reelqueue/platform/pkg/pipeline"
	"github.com/spf13/cobra"
)

type commandContext struct {
	load    func() *config.Config
	cfg     *config.Config
	q       *app.Queue
	verbose bool
}

func (c *commandContext) config() *config.Config {
	if c.cfg == nil {
		c.cfg = c.load()
	}
	return c.cfg
}

func (c *commandContext) queue(ctx context.Context) (*app.Queue, error) {
	if c.q != nil {
		return c.q, nil
	}
	q, err := app.NewQueue(ctx, c.config())
	if err != nil {
		return nil, err
	}
	c.q = q
	return q, nil
}

func (c *commandContext) pipeline(ctx context.Context) (*pipeline.Service, error) {
	q, err := c.queue(ctx)
	if err != nil {
		return nil, err
	}
	rec, _, err := app.NewHistory(c.config())
	if err != nil {
		logger.Log.WithError(err).Warn("history unavailable, continuing without it")
		rec = history.Nop{}
	}
	return app.NewPipeline(c.config(), q, rec), nil
}

func newRootCommand(load func() *config.Config) *cobra.Command {
	ctx := &commandContext{load: load}

	rootCmd := &cobra.Command{
		Use:           "queuectl",
		Short:         "Operate the reel publishing queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !ctx.verbose {
				logger.Log.SetOutput(io.Discard)
			} else {
				logger.Log.SetOutput(os.Stderr)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Write structured logs to stderr")

	rootCmd.AddCommand(newStageCommand(ctx))
	rootCmd.AddCommand(newCommitCommand(ctx))
	rootCmd.AddCommand(newReapCommand(ctx))
	rootCmd.AddCommand(newRowsCommand(ctx))
	rootCmd.AddCommand(newSchemaCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
