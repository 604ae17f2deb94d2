package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"planner/internal/app"
	"planner/internal/db"
	"planner/internal/engine"
)

const rootLong = `Planner is a local-first workspace for consultants: tasks ranked by an
ICE-style score, clients, projects, notes, a sales pipeline, stakeholders,
RAID logs, time tracking and a knowledge base, all in one SQLite file.

Scoring: score = priority * impact * confidence / effort, with priority and
impact clamped to 1..5, confidence to 0..1 and effort to at least 0.1.
Due dates are classified as overdue, today, tomorrow or future; done and
blocked tasks are never reported overdue.
Every change is written to the event log; view it with 'planner log tail'.`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANNER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planner",
		Short:         "Consulting planner CLI",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := db.EnsureWorkspace(viper.GetString("workspace"))
			return err
		},
	}
	addPersistentFlags(root)
	root.AddCommand(
		initCmd(),
		configCmd(),
		taskCmd(),
		clientCmd(),
		projectCmd(),
		noteCmd(),
		oppCmd(),
		stakeholderCmd(),
		raidCmd(),
		timeCmd(),
		kbCmd(),
		dashboardCmd(),
		searchCmd(),
		exportCmd(),
		importCmd(),
		logCmd(),
		serveCmd(),
		tokenCmd(),
	)
	return root
}

func addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging to stderr")
	root.PersistentFlags().String("timezone", "", "IANA timezone (overrides planner.yml)")
	root.PersistentFlags().String("actor-id", "", "actor recorded in the event log")
	root.PersistentFlags().String("jwt-secret", "", "HS256 secret for the HTTP API")
	for _, name := range []string{"workspace", "json", "verbose", "timezone", "actor-id", "jwt-secret"} {
		_ = viper.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
}

func newLogger() *zap.Logger {
	if !viper.GetBool("verbose") {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func workspaceOptions(log *zap.Logger) app.Options {
	return app.Options{
		Workspace: viper.GetString("workspace"),
		Timezone:  viper.GetString("timezone"),
		JWTSecret: viper.GetString("jwt-secret"),
		Log:       log,
	}
}

func actor() string {
	return strings.TrimSpace(viper.GetString("actor-id"))
}

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	log := newLogger()
	defer log.Sync()
	ws, err := app.Open(ctx, workspaceOptions(log))
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
		return fn(ctx, ws.Engine)
	})
}

func jsonOutput() bool {
	return viper.GetBool("json")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJSONOrTable prints v as JSON when --json is set and otherwise
// renders the table built by rows.
func printJSONOrTable(cmd *cobra.Command, v any, header table.Row, rows func(tw table.Writer)) error {
	if jsonOutput() || header == nil {
		return printJSON(cmd.OutOrStdout(), v)
	}
	tw := newTable(cmd.OutOrStdout())
	tw.AppendHeader(header)
	rows(tw)
	tw.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

// changed returns &v when the named flag was set on the command line.
func changed[T any](cmd *cobra.Command, name string, v T) *T {
	if cmd.Flags().Changed(name) {
		return &v
	}
	return nil
}

// dueFlag parses a date flag; an empty value means no date.
func dueFlag(e engine.Engine, v string) (*time.Time, error) {
	return engine.ParseDue(v, e.Clock())
}

// duePatch parses an optional date flag of an update command. It reports
// clear when the flag was set to "" or "none".
func duePatch(cmd *cobra.Command, e engine.Engine, name, v string) (*time.Time, bool, error) {
	if !cmd.Flags().Changed(name) {
		return nil, false, nil
	}
	t, err := engine.ParseDue(v, e.Clock())
	if err != nil {
		return nil, false, err
	}
	return t, t == nil, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
