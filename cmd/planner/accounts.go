package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

// deleteCmd builds the "delete ID" subcommand shared by every entity.
func deleteCmd(kind string, del func(e engine.Engine, ctx context.Context, id, actorID string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := del(e, ctx, args[0], actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kind, args[0])
				return nil
			})
		},
	}
}

func clientCmd() *cobra.Command {
	c := &cobra.Command{Use: "client", Aliases: []string{"clients"}, Short: "Clients and key accounts"}
	c.AddCommand(clientAddCmd(), clientListCmd(), clientGetCmd(), clientUpdateCmd(),
		deleteCmd(domain.KindClient, engine.Engine.DeleteClient))
	return c
}

func clientRows(clients []domain.Client) func(table.Writer) {
	return func(tw table.Writer) {
		for _, c := range clients {
			key := ""
			if c.IsKeyAccount {
				key = "★"
			}
			tw.AppendRow(table.Row{c.ID, c.Name, key, c.Industry, truncate(c.NextStep, 40), fmtDate(c.NextStepDue), fmt.Sprint(c.Tags)})
		}
	}
}

var clientHeader = table.Row{"ID", "Name", "Key", "Industry", "Next step", "Due", "Tags"}

type clientFlags struct {
	name, industry, website, phone, email, address, nextStep, nextDue string
	key                                                               bool
	tags                                                              []string
}

func (f *clientFlags) register(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "name")
	}
	cmd.Flags().StringVar(&f.industry, "industry", "", "industry")
	cmd.Flags().StringVar(&f.website, "website", "", "website")
	cmd.Flags().StringVar(&f.phone, "phone", "", "phone")
	cmd.Flags().StringVar(&f.email, "email", "", "email")
	cmd.Flags().StringVar(&f.address, "address", "", "address")
	cmd.Flags().BoolVar(&f.key, "key-account", false, "key account")
	cmd.Flags().StringVar(&f.nextStep, "next", "", "next step")
	cmd.Flags().StringVar(&f.nextDue, "next-due", "", "next step due date")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tags")
}

func clientAddCmd() *cobra.Command {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, err := dueFlag(e, f.nextDue)
				if err != nil {
					return err
				}
				c, err := e.CreateClient(ctx, engine.ClientCreateOptions{
					Name: args[0], Industry: f.industry, Website: f.website, Phone: f.phone,
					Email: f.email, Address: f.address, IsKeyAccount: f.key,
					NextStep: f.nextStep, NextStepDue: due, Tags: f.tags, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, c, clientHeader, clientRows([]domain.Client{c}))
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func clientListCmd() *cobra.Command {
	var f repo.ClientFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				clients, err := e.ListClients(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, clients, clientHeader, clientRows(clients))
			})
		},
	}
	cmd.Flags().BoolVar(&f.KeyAccountOnly, "key", false, "key accounts only")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "tag")
	cmd.Flags().BoolVar(&f.HasNextStep, "has-next", false, "only clients with a next step")
	return cmd
}

func clientGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetClient(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, c, clientHeader, clientRows([]domain.Client{c}))
			})
		},
	}
}

func clientUpdateCmd() *cobra.Command {
	var f clientFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change client fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, clear, err := duePatch(cmd, e, "next-due", f.nextDue)
				if err != nil {
					return err
				}
				c, err := e.UpdateClient(ctx, engine.ClientUpdateOptions{
					ID:               args[0],
					Name:             changed(cmd, "name", f.name),
					Industry:         changed(cmd, "industry", f.industry),
					Website:          changed(cmd, "website", f.website),
					Phone:            changed(cmd, "phone", f.phone),
					Email:            changed(cmd, "email", f.email),
					Address:          changed(cmd, "address", f.address),
					IsKeyAccount:     changed(cmd, "key-account", f.key),
					NextStep:         changed(cmd, "next", f.nextStep),
					NextStepDue:      due,
					ClearNextStepDue: clear,
					Tags:             changed(cmd, "tag", f.tags),
					ActorID:          actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, c, clientHeader, clientRows([]domain.Client{c}))
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func projectCmd() *cobra.Command {
	c := &cobra.Command{Use: "project", Aliases: []string{"projects"}, Short: "Active and planned projects"}
	c.AddCommand(projectAddCmd(), projectListCmd(), projectGetCmd(), projectUpdateCmd(),
		deleteCmd(domain.KindProject, engine.Engine.DeleteProject))
	return c
}

var projectHeader = table.Row{"ID", "Title", "Kind", "Client", "Due", "Next step", "Next due", "Tags"}

func projectRows(projects []domain.Project) func(table.Writer) {
	return func(tw table.Writer) {
		for _, p := range projects {
			tw.AppendRow(table.Row{p.ID, truncate(p.Title, 40), p.Kind, deref(p.ClientID), fmtDate(p.Due),
				truncate(p.NextStep, 40), fmtDate(p.NextStepDue), fmt.Sprint(p.Tags)})
		}
	}
}

type projectFlags struct {
	title, desc, client, kind, due, nextStep, nextDue string
	tags                                              []string
}

func (f *projectFlags) register(cmd *cobra.Command, withTitle bool) {
	if withTitle {
		cmd.Flags().StringVar(&f.title, "title", "", "title")
	}
	cmd.Flags().StringVar(&f.desc, "desc", "", "description")
	cmd.Flags().StringVar(&f.client, "client", "", "client id")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Active or Planned")
	cmd.Flags().StringVar(&f.due, "due", "", "due date")
	cmd.Flags().StringVar(&f.nextStep, "next", "", "next step")
	cmd.Flags().StringVar(&f.nextDue, "next-due", "", "next step due date")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tags")
}

func projectAddCmd() *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, err := dueFlag(e, f.due)
				if err != nil {
					return err
				}
				nextDue, err := dueFlag(e, f.nextDue)
				if err != nil {
					return err
				}
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					Title: args[0], Description: f.desc, ClientID: f.client, Kind: f.kind,
					Due: due, NextStep: f.nextStep, NextStepDue: nextDue, Tags: f.tags, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, p, projectHeader, projectRows([]domain.Project{p}))
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projects, err := e.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, projects, projectHeader, projectRows(projects))
			})
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&f.Kind, "kind", "", "Active or Planned")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "tag")
	cmd.Flags().BoolVar(&f.HasNextStep, "has-next", false, "only projects with a next step")
	return cmd
}

func projectGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, p, projectHeader, projectRows([]domain.Project{p}))
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change project fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, clearDue, err := duePatch(cmd, e, "due", f.due)
				if err != nil {
					return err
				}
				nextDue, clearNext, err := duePatch(cmd, e, "next-due", f.nextDue)
				if err != nil {
					return err
				}
				p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
					ID:               args[0],
					Title:            changed(cmd, "title", f.title),
					Description:      changed(cmd, "desc", f.desc),
					ClientID:         changed(cmd, "client", f.client),
					Kind:             changed(cmd, "kind", f.kind),
					Due:              due,
					ClearDue:         clearDue,
					NextStep:         changed(cmd, "next", f.nextStep),
					NextStepDue:      nextDue,
					ClearNextStepDue: clearNext,
					Tags:             changed(cmd, "tag", f.tags),
					ActorID:          actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, p, projectHeader, projectRows([]domain.Project{p}))
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func noteCmd() *cobra.Command {
	c := &cobra.Command{Use: "note", Aliases: []string{"notes"}, Short: "Meeting notes linked to clients, projects and tasks"}
	c.AddCommand(noteAddCmd(), noteListCmd(), noteGetCmd(), noteUpdateCmd(),
		deleteCmd(domain.KindNote, engine.Engine.DeleteNote))
	return c
}

var noteHeader = table.Row{"ID", "Title", "Client", "Project", "Tasks", "Tags", "Updated"}

func noteRows(notes []domain.Note) func(table.Writer) {
	return func(tw table.Writer) {
		for _, n := range notes {
			tw.AppendRow(table.Row{n.ID, truncate(n.Title, 40), deref(n.ClientID), deref(n.ProjectID),
				len(n.LinkedTasks), fmt.Sprint(n.Tags), n.UpdatedAt})
		}
	}
}

func noteAddCmd() *cobra.Command {
	var content, client, project string
	var tasks, tags []string
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.CreateNote(ctx, engine.NoteCreateOptions{
					Title: args[0], Content: content, ClientID: client, ProjectID: project,
					LinkedTasks: tasks, Tags: tags, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, n, noteHeader, noteRows([]domain.Note{n}))
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "markdown content")
	cmd.Flags().StringVar(&client, "client", "", "client id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringSliceVar(&tasks, "task", nil, "linked task ids")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags")
	return cmd
}

func noteListCmd() *cobra.Command {
	var f repo.NoteFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				notes, err := e.ListNotes(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, notes, noteHeader, noteRows(notes))
			})
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.TaskID, "task", "", "linked task id")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "tag")
	return cmd
}

func noteGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a note with its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.GetNote(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), n)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "# %s\n\n%s\n", n.Title, n.Content)
				if len(n.LinkedTasks) > 0 {
					fmt.Fprintf(w, "\nLinked tasks: %v\n", n.LinkedTasks)
				}
				return nil
			})
		},
	}
}

func noteUpdateCmd() *cobra.Command {
	var title, content, client, project string
	var tasks, link, unlink, tags []string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a note or its task links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.UpdateNote(ctx, engine.NoteUpdateOptions{
					ID:          args[0],
					Title:       changed(cmd, "title", title),
					Content:     changed(cmd, "content", content),
					ClientID:    changed(cmd, "client", client),
					ProjectID:   changed(cmd, "project", project),
					LinkedTasks: changed(cmd, "tasks", tasks),
					LinkTasks:   link,
					UnlinkTasks: unlink,
					Tags:        changed(cmd, "tag", tags),
					ActorID:     actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, n, noteHeader, noteRows([]domain.Note{n}))
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&content, "content", "", "markdown content")
	cmd.Flags().StringVar(&client, "client", "", "client id; empty clears it")
	cmd.Flags().StringVar(&project, "project", "", "project id; empty clears it")
	cmd.Flags().StringSliceVar(&tasks, "tasks", nil, "replace linked task ids")
	cmd.Flags().StringSliceVar(&link, "link", nil, "link task ids")
	cmd.Flags().StringSliceVar(&unlink, "unlink", nil, "unlink task ids")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags")
	return cmd
}
