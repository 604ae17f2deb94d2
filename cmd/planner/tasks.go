package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"planner/internal/app"
	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/ranking"
	"planner/internal/repo"
)

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Aliases: []string{"tasks"}, Short: "Ranked task list"}
	t.AddCommand(
		taskAddCmd(),
		taskListCmd(),
		taskGetCmd(),
		taskUpdateCmd(),
		taskDoneCmd(),
		taskDeleteCmd(),
		taskBulkCmd(),
		taskBoardCmd(),
		taskRescoreCmd(),
	)
	return t
}

func renderTasks(w io.Writer, tasks []domain.Task, e engine.Engine) {
	now := e.Clock()
	tw := newTable(w)
	tw.AppendHeader(table.Row{"#", "ID", "Title", "Status", "Score", "P", "I", "C", "E", "Due", "When", "Tags"})
	for i, t := range tasks {
		when := ""
		if t.Due != nil {
			when = ranking.Classify(t.Due, now).String()
			if ranking.IsOverdue(t.Due, t.Status, now) {
				when = fmt.Sprintf("overdue %dd", -ranking.DaysUntil(*t.Due, now))
			}
		}
		tw.AppendRow(table.Row{
			i + 1, t.ID, truncate(t.Title, 48), t.Status, fmt.Sprintf("%.2f", t.Score),
			t.Priority, t.Impact, t.Confidence, t.Effort, fmtDate(t.Due), when, fmt.Sprint(t.Tags),
		})
	}
	tw.Render()
}

func printTask(cmd *cobra.Command, e engine.Engine, t domain.Task) error {
	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), t)
	}
	renderTasks(cmd.OutOrStdout(), []domain.Task{t}, e)
	return nil
}

type taskFilterFlags struct {
	status, client, project, tag string
	nextStep, open                bool
	limit                         int
}

func (f *taskFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "status", "", "Inbox, Todo, Doing, Blocked or Done")
	cmd.Flags().StringVar(&f.client, "client", "", "client id")
	cmd.Flags().StringVar(&f.project, "project", "", "project id")
	cmd.Flags().StringVar(&f.tag, "tag", "", "tag")
	cmd.Flags().BoolVar(&f.nextStep, "next-step", false, "only next-step tasks")
	cmd.Flags().BoolVar(&f.open, "open", false, "exclude done tasks")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum tasks")
}

func (f taskFilterFlags) filters() repo.TaskFilters {
	return repo.TaskFilters{
		Status:       f.status,
		ClientID:     f.client,
		ProjectID:    f.project,
		Tag:          f.tag,
		NextStepOnly: f.nextStep,
		ExcludeDone:  f.open,
		Limit:        f.limit,
	}
}

func taskAddCmd() *cobra.Command {
	var (
		desc, status, due, client, project string
		priority, impact                   int
		effort, confidence                 float64
		nextStep                           bool
		tags                               []string
	)
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := dueFlag(e, due)
				if err != nil {
					return err
				}
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					Title:       args[0],
					Description: desc,
					Status:      domain.TaskStatus(status),
					Priority:    changed(cmd, "priority", priority),
					Effort:      changed(cmd, "effort", effort),
					Impact:      changed(cmd, "impact", impact),
					Confidence:  changed(cmd, "confidence", confidence),
					Due:         d,
					ClientID:    client,
					ProjectID:   project,
					IsNextStep:  nextStep,
					Tags:        tags,
					ActorID:     actor(),
				})
				if err != nil {
					return err
				}
				return printTask(cmd, e, t)
			})
		},
	}
	cmd.Flags().StringVar(&desc, "desc", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default Inbox)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 3, "priority 1..5")
	cmd.Flags().IntVarP(&impact, "impact", "i", 3, "impact 1..5")
	cmd.Flags().Float64VarP(&confidence, "confidence", "c", 0.7, "confidence 0..1")
	cmd.Flags().Float64VarP(&effort, "effort", "e", 1, "effort (minimum 0.1)")
	cmd.Flags().StringVar(&due, "due", "", "due date: YYYY-MM-DD, today, tomorrow or +Nd")
	cmd.Flags().StringVar(&client, "client", "", "client id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().BoolVar(&nextStep, "next-step", false, "mark as next step")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f taskFilterFlags
	var sort string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks ranked by score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, engine.TaskListOptions{TaskFilters: f.filters(), Sort: sort})
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				renderTasks(cmd.OutOrStdout(), tasks, e)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&sort, "sort", "", "rank (default), due or priority")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), t)
				}
				renderTasks(cmd.OutOrStdout(), []domain.Task{t}, e)
				if t.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", t.Description)
				}
				return nil
			})
		},
	}
}

type taskPatchFlags struct {
	title, desc, status, due, client, project string
	priority, impact                          int
	effort, confidence                        float64
	nextStep                                  bool
	tags, addTags, removeTags                 []string
}

func (p *taskPatchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.title, "title", "", "title")
	cmd.Flags().StringVar(&p.desc, "desc", "", "description")
	cmd.Flags().StringVar(&p.status, "status", "", "Inbox, Todo, Doing, Blocked or Done")
	cmd.Flags().IntVarP(&p.priority, "priority", "p", 0, "priority 1..5")
	cmd.Flags().IntVarP(&p.impact, "impact", "i", 0, "impact 1..5")
	cmd.Flags().Float64VarP(&p.confidence, "confidence", "c", 0, "confidence 0..1")
	cmd.Flags().Float64VarP(&p.effort, "effort", "e", 0, "effort (minimum 0.1)")
	cmd.Flags().StringVar(&p.due, "due", "", "due date; \"none\" clears it")
	cmd.Flags().StringVar(&p.client, "client", "", "client id; empty clears it")
	cmd.Flags().StringVar(&p.project, "project", "", "project id; empty clears it")
	cmd.Flags().BoolVar(&p.nextStep, "next-step", false, "next-step flag")
	cmd.Flags().StringSliceVar(&p.tags, "tags", nil, "replace all tags")
	cmd.Flags().StringSliceVar(&p.addTags, "add-tag", nil, "add tags")
	cmd.Flags().StringSliceVar(&p.removeTags, "remove-tag", nil, "remove tags")
}

func (p taskPatchFlags) options(cmd *cobra.Command, e engine.Engine, id string) (engine.TaskUpdateOptions, error) {
	opts := engine.TaskUpdateOptions{
		ID:          id,
		Title:       changed(cmd, "title", p.title),
		Description: changed(cmd, "desc", p.desc),
		Priority:    changed(cmd, "priority", p.priority),
		Effort:      changed(cmd, "effort", p.effort),
		Impact:      changed(cmd, "impact", p.impact),
		Confidence:  changed(cmd, "confidence", p.confidence),
		ClientID:    changed(cmd, "client", p.client),
		ProjectID:   changed(cmd, "project", p.project),
		IsNextStep:  changed(cmd, "next-step", p.nextStep),
		Tags:        changed(cmd, "tags", p.tags),
		AddTags:     p.addTags,
		RemoveTags:  p.removeTags,
		ActorID:     actor(),
	}
	if cmd.Flags().Changed("status") {
		st := domain.TaskStatus(p.status)
		opts.Status = &st
	}
	due, clear, err := duePatch(cmd, e, "due", p.due)
	if err != nil {
		return opts, err
	}
	opts.Due, opts.ClearDue = due, clear
	return opts, nil
}

func taskUpdateCmd() *cobra.Command {
	var p taskPatchFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change task fields; scoring changes recompute the score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts, err := p.options(cmd, e, args[0])
				if err != nil {
					return err
				}
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printTask(cmd, e, t)
			})
		},
	}
	p.register(cmd)
	return cmd
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, args[0], actor())
				if err != nil {
					return err
				}
				return printTask(cmd, e, t)
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task and unlink it from notes and time entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTask(ctx, args[0], actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

func taskBulkCmd() *cobra.Command {
	var p taskPatchFlags
	cmd := &cobra.Command{
		Use:   "bulk ID...",
		Short: "Apply the same change to several tasks in one transaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts, err := p.options(cmd, e, "")
				if err != nil {
					return err
				}
				tasks, err := e.BulkUpdateTasks(ctx, args, opts)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				renderTasks(cmd.OutOrStdout(), tasks, e)
				return nil
			})
		},
	}
	p.register(cmd)
	return cmd
}

func taskBoardCmd() *cobra.Command {
	var f taskFilterFlags
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Kanban board, one ranked column per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				s := app.NewState(ws.Engine, ws.Dir)
				if err := s.SetView(app.ViewBoard); err != nil {
					return err
				}
				if err := s.SetTaskFilter(ctx, engine.TaskListOptions{TaskFilters: f.filters()}); err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), s.Board)
				}
				w := cmd.OutOrStdout()
				for _, col := range s.Board {
					fmt.Fprintf(w, "\n%s (%d)\n", col.Status, len(col.Tasks))
					if len(col.Tasks) > 0 {
						renderTasks(w, col.Tasks, ws.Engine)
					}
				}
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func taskRescoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescore",
		Short: "Recompute every stored task score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.RescoreTasks(ctx, actor())
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), map[string]int{"changed": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rescored tasks, %d changed\n", n)
				return nil
			})
		},
	}
}
