package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reelqueue/platform/pkg/gateway/auth"
	"github.com/reelqueue/platform/pkg/queue"
	"github.com/spf13/cobra"
)

const cellPreview = 40

func newRowsCommand(ctx *commandContext) *cobra.Command {
	var sheet string
	var state string
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "List queue rows with their lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.queue(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := q.Selector.Rows(cmd.Context(), sheet)
			if err != nil {
				return err
			}

			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				s := r.State()
				if state != "" && string(s) != state {
					continue
				}
				table = append(table, []string{
					strconv.Itoa(r.Index),
					string(s),
					preview(r.Get(queue.FieldTitle)),
					preview(r.Get(queue.FieldMediaURL)),
					r.Get(queue.FieldCreationID),
					r.Get(queue.FieldPublishedAt),
					preview(r.Get(queue.FieldError)),
				})
			}
			if len(table) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			headers := []string{"Row", "State", "Title", "Media", "Creation ID", "Published", "Error"}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, table, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (defaults to the schema sheet)")
	cmd.Flags().StringVar(&state, "state", "", "Only show rows in this state (pending, stage-ready, commit-ready, published, failed)")
	return cmd
}

func newSchemaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the resolved queue schema descriptor",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := queue.LoadSchema(ctx.config().QueueSchema)
			if err != nil {
				return err
			}
			if sheet := ctx.config().QueueSheet; sheet != "" {
				s.Sheet = sheet
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Schema: %s\nSheet: %s\nHeader rows: %d\nError mode: %s\n", s.Name, s.Sheet, s.HeaderRows, s.ErrorMode)

			rows := make([][]string, 0, len(s.Fields()))
			for _, f := range s.Fields() {
				rows = append(rows, []string{strings.ToUpper(s.Columns[f]), string(f)})
			}
			fmt.Fprintln(out, renderTable([]string{"Column", "Field"}, rows, nil))
			return nil
		},
	}
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the pipeline API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config()
			m, err := auth.NewJWTManager(cfg.OperatorJWTSecret, cfg.OperatorJWTIssuer)
			if err != nil {
				return fmt.Errorf("OPERATOR_JWT_SECRET: %w", err)
			}
			token, err := m.IssueToken(subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "scheduler", "Token subject")
	cmd.Flags().StringVar(&role, "role", "operator", "Token role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " | ")
	if len([]rune(s)) <= cellPreview {
		return s
	}
	return string([]rune(s)[:cellPreview-1]) + "…"
}
