package main

import (
	"errors"
	"fmt"

	"github.com/reelqueue/platform/pkg/queue"
	"github.com/spf13/cobra"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Create a media container for the next stage-ready row",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Stage(cmd.Context(), sheet)
			if errors.Is(err, queue.ErrNoRow) {
				fmt.Fprintln(cmd.OutOrStdout(), "No rows ready for staging")
				return nil
			}
			if err != nil {
				return fmt.Errorf("stage: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (defaults to the schema sheet)")
	return cmd
}

func newCommitCommand(ctx *commandContext) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Publish the next commit-ready row",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Commit(cmd.Context(), sheet)
			if errors.Is(err, queue.ErrNoRow) {
				fmt.Fprintln(cmd.OutOrStdout(), "No rows ready for publishing")
				return nil
			}
			if err != nil {
				return fmt.Errorf("commit: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (defaults to the schema sheet)")
	return cmd
}

func newReapCommand(ctx *commandContext) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Delete hosted media for every published row",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			report, err := svc.Reap(cmd.Context(), sheet)
			if err != nil {
				return fmt.Errorf("reap: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (defaults to the schema sheet)")
	return cmd
}
