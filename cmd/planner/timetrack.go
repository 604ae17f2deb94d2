package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

func timeCmd() *cobra.Command {
	c := &cobra.Command{Use: "time", Short: "Time entries and the running timer"}
	c.AddCommand(timeAddCmd(), timeListCmd(), timeUpdateCmd(), timeStartCmd(), timeStopCmd(), timeStatusCmd(), timeSummaryCmd(),
		deleteCmd(domain.KindTimeEntry, engine.Engine.DeleteTimeEntry))
	return c
}

var timeHeader = table.Row{"ID", "Date", "Hours", "Billable", "Client", "Project", "Task", "Notes"}

func timeRows(entries []domain.TimeEntry) func(table.Writer) {
	return func(tw table.Writer) {
		total := 0.0
		for _, te := range entries {
			total += te.Hours
			tw.AppendRow(table.Row{te.ID, te.Date, fmt.Sprintf("%.2f", te.Hours), te.Billable,
				deref(te.ClientID), deref(te.ProjectID), deref(te.TaskID), truncate(te.Notes, 40)})
		}
		if len(entries) > 1 {
			tw.AppendFooter(table.Row{"", "Total", fmt.Sprintf("%.2f", total)})
		}
	}
}

func timeAddCmd() *cobra.Command {
	var date, client, project, task, notes string
	var billable bool
	cmd := &cobra.Command{
		Use:   "add HOURS",
		Short: "Book hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("%w: hours must be a number", engine.ErrValidation)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				te, err := e.AddTimeEntry(ctx, engine.TimeEntryCreateOptions{
					Date: date, Hours: hours, Billable: billable, ClientID: client,
					ProjectID: project, TaskID: task, Notes: notes, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, te, timeHeader, timeRows([]domain.TimeEntry{te}))
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&billable, "billable", true, "billable hours")
	cmd.Flags().StringVar(&client, "client", "", "client id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&task, "task", "", "task id")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func timeListCmd() *cobra.Command {
	var f repo.TimeEntryFilters
	var billable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List time entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Billable = changed(cmd, "billable", billable)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.ListTimeEntries(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, entries, timeHeader, timeRows(entries))
			})
		},
	}
	cmd.Flags().StringVar(&f.From, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.To, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.TaskID, "task", "", "task id")
	cmd.Flags().BoolVar(&billable, "billable", false, "billable only (--billable=false for non-billable)")
	return cmd
}

func timeUpdateCmd() *cobra.Command {
	var date, client, project, task, notes string
	var hours float64
	var billable bool
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a time entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				te, err := e.UpdateTimeEntry(ctx, engine.TimeEntryUpdateOptions{
					ID:        args[0],
					Date:      changed(cmd, "date", date),
					Hours:     changed(cmd, "hours", hours),
					Billable:  changed(cmd, "billable", billable),
					ClientID:  changed(cmd, "client", client),
					ProjectID: changed(cmd, "project", project),
					TaskID:    changed(cmd, "task", task),
					Notes:     changed(cmd, "notes", notes),
					ActorID:   actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, te, timeHeader, timeRows([]domain.TimeEntry{te}))
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "YYYY-MM-DD")
	cmd.Flags().Float64Var(&hours, "hours", 0, "hours")
	cmd.Flags().BoolVar(&billable, "billable", true, "billable")
	cmd.Flags().StringVar(&client, "client", "", "client id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&task, "task", "", "task id")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func timeStartCmd() *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tm, err := e.StartTimer(ctx, task, actor())
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), tm)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Timer started at %s\n", tm.StartedAt.In(e.Location()).Format(time.Kitchen))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task id")
	return cmd
}

func timeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the timer and book a billable entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				te, err := e.StopTimer(ctx, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, te, timeHeader, timeRows([]domain.TimeEntry{te}))
			})
		},
	}
}

func timeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tm, err := e.Timer(ctx)
				if errors.Is(err, engine.ErrNoTimer) {
					if jsonOutput() {
						return printJSON(cmd.OutOrStdout(), map[string]bool{"running": false})
					}
					fmt.Fprintln(cmd.OutOrStdout(), "No timer running")
					return nil
				}
				if err != nil {
					return err
				}
				elapsed := e.Clock().Sub(tm.StartedAt)
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"running": true, "task_id": tm.TaskID, "started_at": tm.StartedAt,
						"elapsed_hours": engine.TimerHours(elapsed),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Running for %s (task %s)\n", elapsed.Truncate(time.Second), deref(tm.TaskID))
				return nil
			})
		},
	}
}

func timeSummaryCmd() *cobra.Command {
	var period, date string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Hours per day, client and project for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var ref time.Time
				if date != "" {
					d, err := dueFlag(e, date)
					if err != nil {
						return err
					}
					if d != nil {
						ref = *d
					}
				}
				s, err := e.TimeSummary(ctx, period, ref)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), s)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s %s..%s  total %.2fh  billable %.2fh  non-billable %.2fh  utilization %.0f%%\n",
					s.Period, s.From, s.To, s.Total, s.Billable, s.NonBillable, s.Utilization)
				for _, sec := range []struct {
					title   string
					buckets []engine.HoursBucket
				}{{"Date", s.ByDate}, {"Client", s.ByClient}, {"Project", s.ByProject}} {
					if len(sec.buckets) == 0 {
						continue
					}
					tw := newTable(w)
					tw.AppendHeader(table.Row{sec.title, "Hours"})
					for _, b := range sec.buckets {
						tw.AppendRow(table.Row{b.Key, fmt.Sprintf("%.2f", b.Hours)})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", engine.PeriodWeek, "day, week or month")
	cmd.Flags().StringVar(&date, "date", "", "any date inside the period (default today)")
	return cmd
}

func kbCmd() *cobra.Command {
	c := &cobra.Command{Use: "kb", Aliases: []string{"knowledge"}, Short: "Knowledge base"}
	c.AddCommand(kbAddCmd(), kbListCmd(), kbGetCmd(), kbUpdateCmd(),
		deleteCmd(domain.KindKnowledge, engine.Engine.DeleteKnowledge))
	return c
}

var kbHeader = table.Row{"ID", "Title", "Category", "Public", "Tags", "Last accessed"}

func kbRows(items []domain.KnowledgeItem) func(table.Writer) {
	return func(tw table.Writer) {
		for _, k := range items {
			tw.AppendRow(table.Row{k.ID, truncate(k.Title, 40), k.Category, k.IsPublic, fmt.Sprint(k.Tags), k.LastAccessedAt})
		}
	}
}

func kbAddCmd() *cobra.Command {
	var content, category string
	var tags []string
	var public bool
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a knowledge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, err := e.CreateKnowledge(ctx, engine.KnowledgeCreateOptions{
					Title: args[0], Content: content, Category: category, Tags: tags, IsPublic: public, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, k, kbHeader, kbRows([]domain.KnowledgeItem{k}))
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "markdown content")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags")
	cmd.Flags().BoolVar(&public, "public", false, "shareable with clients")
	return cmd
}

func kbListCmd() *cobra.Command {
	var f repo.KnowledgeFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListKnowledge(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, items, kbHeader, kbRows(items))
			})
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "category")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "tag")
	cmd.Flags().BoolVar(&f.PublicOnly, "public", false, "public items only")
	return cmd
}

func kbGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a knowledge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, err := e.GetKnowledge(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), k)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n\n%s\n", k.Title, k.Content)
				return nil
			})
		},
	}
}

func kbUpdateCmd() *cobra.Command {
	var title, content, category string
	var tags []string
	var public bool
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a knowledge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, err := e.UpdateKnowledge(ctx, engine.KnowledgeUpdateOptions{
					ID:       args[0],
					Title:    changed(cmd, "title", title),
					Content:  changed(cmd, "content", content),
					Category: changed(cmd, "category", category),
					Tags:     changed(cmd, "tag", tags),
					IsPublic: changed(cmd, "public", public),
					ActorID:  actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, k, kbHeader, kbRows([]domain.KnowledgeItem{k}))
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&content, "content", "", "markdown content")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags")
	cmd.Flags().BoolVar(&public, "public", false, "shareable with clients")
	return cmd
}
