package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"planner/internal/app"
	"planner/internal/config"
	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/engine/auth"
	"planner/internal/repo"
	"planner/internal/server"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the workspace database and planner.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()
			ws, wrote, err := app.Init(cmd.Context(), workspaceOptions(log))
			if err != nil {
				return err
			}
			defer ws.Close()
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{"workspace": ws.Dir, "config_written": wrote})
			}
			if wrote {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized planner workspace in %s\n", ws.Dir)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Workspace %s already initialized\n", ws.Dir)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Manage planner.yml"}
	c.AddCommand(configInitCmd(), configShowCmd(), configValidateCmd(), configSetCmd())
	return c
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default planner.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(workspaceOptions(nil))
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate planner.yml or another config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(viper.GetString("workspace"))
			}
			if _, err := config.FromFile(file); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file (defaults to the workspace planner.yml)")
	return cmd
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting (theme, accent, density, presenter or a dotted key)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(workspace, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set\n", args[0])
			return nil
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Today, this week, overdue and next steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				s := app.NewState(ws.Engine, ws.Dir)
				if err := s.Load(ctx); err != nil {
					return err
				}
				d := s.Dashboard
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), d)
				}
				w := cmd.OutOrStdout()
				m := d.Metrics
				fmt.Fprintf(w, "%s  projects %d active / %d planned  clients %d  open tasks %d  open RAID %d\n",
					d.Date, m.ActiveProjects, m.PlannedProjects, m.Clients, m.OpenTasks, m.OpenRAID)
				fmt.Fprintf(w, "pipeline %d open, weighted %.2f  hours today %.2f / %.2f\n",
					m.OpenOpportunities, m.WeightedPipeline, m.HoursToday, m.TargetHours)
				for _, sec := range []struct {
					title string
					tasks []domain.Task
				}{
					{fmt.Sprintf("Overdue (%d)", d.OverdueCount), d.Overdue},
					{"Today", d.Today},
					{"This week", d.Week},
				} {
					fmt.Fprintf(w, "\n%s\n", sec.title)
					if len(sec.tasks) == 0 {
						fmt.Fprintln(w, "  nothing")
						continue
					}
					renderTasks(w, sec.tasks, ws.Engine)
				}
				fmt.Fprintln(w, "\nNext steps")
				tw := newTable(w)
				tw.AppendHeader(table.Row{"Kind", "Title", "Step", "Due", "When"})
				for _, ns := range d.NextSteps {
					tw.AppendRow(table.Row{ns.Kind, truncate(ns.Title, 40), truncate(ns.Step, 40), fmtDate(ns.Due), ns.DueClass})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func searchCmd() *cobra.Command {
	var kinds []string
	var limit int
	cmd := &cobra.Command{
		Use:   "search TERM",
		Short: "Search tasks, clients, projects, notes, opportunities and knowledge",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Search(ctx, strings.Join(args, " "), kinds, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, res, table.Row{"Kind", "ID", "Title", "Snippet"}, func(tw table.Writer) {
					for _, r := range res {
						tw.AppendRow(table.Row{r.Kind, r.ID, truncate(r.Title, 40), truncate(r.Snippet, 60)})
					}
				})
			})
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "restrict to kinds (task, client, project, note, opportunity, knowledge)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func exportCmd() *cobra.Command {
	c := &cobra.Command{Use: "export", Short: "Export workspace data"}
	c.AddCommand(exportFormatCmd("json", "Full JSON snapshot of every entity"), exportFormatCmd("csv", "Ranked task list as CSV"))
	return c
}

func exportFormatCmd(format, short string) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   format,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w := cmd.OutOrStdout()
				if outPath != "" {
					if info, err := os.Stat(outPath); err == nil && info.IsDir() {
						outPath = filepath.Join(outPath, e.ExportFileName(format))
					}
					f, err := os.Create(outPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				var err error
				if format == "csv" {
					err = e.ExportTasksCSV(ctx, w)
				} else {
					err = e.ExportJSON(ctx, w)
				}
				if err != nil {
					return err
				}
				if outPath != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", outPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "file or directory to write (default stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Upsert a JSON snapshot; scores are recomputed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.ImportJSON(ctx, f, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, stats, table.Row{"Entity", "Rows"}, func(tw table.Writer) {
					for _, k := range []string{
						domain.KindClient, domain.KindProject, domain.KindTask, domain.KindNote, domain.KindOpportunity,
						domain.KindStakeholder, domain.KindRAID, domain.KindTimeEntry, domain.KindKnowledge,
					} {
						tw.AppendRow(table.Row{k, stats[k]})
					}
				})
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every create, update, delete, completion, rescore, import and timer change, newest first.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.LatestEvents(ctx, n, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, evts, table.Row{"ID", "When", "Type", "Entity", "Actor", "Payload"}, func(tw table.Writer) {
					for _, ev := range evts {
						tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityID, ev.ActorID, truncate(ev.Payload, 60)})
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type, e.g. task.completed")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()
			ws, err := app.Open(cmd.Context(), workspaceOptions(log))
			if err != nil {
				return err
			}
			defer ws.Close()
			if !cmd.Flags().Changed("addr") && ws.Config.Server.Addr != "" {
				addr = ws.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && ws.Config.Server.BasePath != "" {
				basePath = ws.Config.Server.BasePath
			}
			authCfg := server.AuthConfig{JWTSecret: ws.Config.Server.JWTSecret, Logger: log}
			if authCfg.JWTSecret == "" {
				log.Warn("no jwt secret configured; the API accepts unauthenticated requests", zap.String("addr", addr))
			}
			handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: basePath, Auth: authCfg, Logger: log})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving planner API", zap.String("addr", addr), zap.String("base_path", basePath))
			fmt.Fprintf(cmd.OutOrStdout(), "Serving planner API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(workspaceOptions(nil))
			if err != nil {
				return err
			}
			if subject == "" {
				subject = actor()
			}
			if subject == "" {
				subject = "local-user"
			}
			token, err := auth.Service{Secret: cfg.Server.JWTSecret}.Issue(subject, ttl)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"token": token, "subject": subject})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (defaults to --actor-id)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	return cmd
}
