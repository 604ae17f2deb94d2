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

func oppCmd() *cobra.Command {
	c := &cobra.Command{Use: "opp", Aliases: []string{"opportunity", "opportunities"}, Short: "Sales pipeline"}
	c.AddCommand(oppAddCmd(), oppListCmd(), oppGetCmd(), oppUpdateCmd(), oppPipelineCmd(),
		deleteCmd(domain.KindOpportunity, engine.Engine.DeleteOpportunity))
	return c
}

var oppHeader = table.Row{"ID", "Name", "Stage", "Amount", "Prob", "Weighted", "Client", "Next step", "Due"}

func oppRows(opps []domain.Opportunity) func(table.Writer) {
	return func(tw table.Writer) {
		for _, o := range opps {
			tw.AppendRow(table.Row{o.ID, truncate(o.Name, 40), o.Stage, fmt.Sprintf("%.2f", o.Amount),
				fmt.Sprintf("%.0f%%", o.Probability*100), fmt.Sprintf("%.2f", o.Amount*o.Probability),
				deref(o.ClientID), truncate(o.NextStep, 30), fmtDate(o.NextStepDue)})
		}
	}
}

type oppFlags struct {
	name, client, project, stage, nextStep, nextDue, notes string
	amount, probability                                    float64
	tags                                                   []string
}

func (f *oppFlags) register(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "name")
	}
	cmd.Flags().StringVar(&f.client, "client", "", "client id")
	cmd.Flags().StringVar(&f.project, "project", "", "project id")
	cmd.Flags().StringVar(&f.stage, "stage", "", "Discovery, Scoping, Proposal, Negotiation, Closed Won or Closed Lost")
	cmd.Flags().Float64Var(&f.amount, "amount", 0, "deal amount")
	cmd.Flags().Float64Var(&f.probability, "probability", 0, "win probability 0..1")
	cmd.Flags().StringVar(&f.nextStep, "next", "", "next step")
	cmd.Flags().StringVar(&f.nextDue, "next-due", "", "next step due date")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tags")
}

func oppAddCmd() *cobra.Command {
	var f oppFlags
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create an opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, err := dueFlag(e, f.nextDue)
				if err != nil {
					return err
				}
				o, err := e.CreateOpportunity(ctx, engine.OpportunityCreateOptions{
					Name: args[0], ClientID: f.client, ProjectID: f.project, Stage: f.stage,
					Amount: f.amount, Probability: changed(cmd, "probability", f.probability),
					NextStep: f.nextStep, NextStepDue: due, Notes: f.notes, Tags: f.tags, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, o, oppHeader, oppRows([]domain.Opportunity{o}))
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func oppListCmd() *cobra.Command {
	var f repo.OpportunityFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opps, err := e.ListOpportunities(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, opps, oppHeader, oppRows(opps))
			})
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage")
	cmd.Flags().BoolVar(&f.OpenOnly, "open", false, "exclude closed stages")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "tag")
	return cmd
}

func oppGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show an opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.GetOpportunity(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, o, oppHeader, oppRows([]domain.Opportunity{o}))
			})
		},
	}
}

func oppUpdateCmd() *cobra.Command {
	var f oppFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change opportunity fields or move it along the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, clear, err := duePatch(cmd, e, "next-due", f.nextDue)
				if err != nil {
					return err
				}
				o, err := e.UpdateOpportunity(ctx, engine.OpportunityUpdateOptions{
					ID:               args[0],
					Name:             changed(cmd, "name", f.name),
					ClientID:         changed(cmd, "client", f.client),
					ProjectID:        changed(cmd, "project", f.project),
					Stage:            changed(cmd, "stage", f.stage),
					Amount:           changed(cmd, "amount", f.amount),
					Probability:      changed(cmd, "probability", f.probability),
					NextStep:         changed(cmd, "next", f.nextStep),
					NextStepDue:      due,
					ClearNextStepDue: clear,
					Notes:            changed(cmd, "notes", f.notes),
					Tags:             changed(cmd, "tag", f.tags),
					ActorID:          actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, o, oppHeader, oppRows([]domain.Opportunity{o}))
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func oppPipelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Pipeline totals per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.PipelineMetrics(ctx)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(cmd.OutOrStdout(), m)
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Stage", "Count", "Amount", "Weighted"})
				for _, s := range m.Stages {
					tw.AppendRow(table.Row{s.Stage, s.Count, fmt.Sprintf("%.2f", s.Amount), fmt.Sprintf("%.2f", s.Weighted)})
				}
				tw.AppendFooter(table.Row{"Open", m.OpenCount, fmt.Sprintf("%.2f", m.Total), fmt.Sprintf("%.2f", m.Weighted)})
				tw.Render()
				fmt.Fprintf(cmd.OutOrStdout(), "Closed won %.2f, win rate %.1f%%\n", m.ClosedWon, m.WinRate)
				return nil
			})
		},
	}
}

func stakeholderCmd() *cobra.Command {
	c := &cobra.Command{Use: "stakeholder", Aliases: []string{"stakeholders"}, Short: "Client stakeholders"}
	c.AddCommand(stakeholderAddCmd(), stakeholderListCmd(), stakeholderGetCmd(), stakeholderUpdateCmd(),
		deleteCmd(domain.KindStakeholder, engine.Engine.DeleteStakeholder))
	return c
}

var stakeholderHeader = table.Row{"ID", "Name", "Role", "Client", "Influence", "Attitude", "Email"}

func stakeholderRows(list []domain.Stakeholder) func(table.Writer) {
	return func(tw table.Writer) {
		for _, s := range list {
			tw.AppendRow(table.Row{s.ID, s.Name, s.Role, deref(s.ClientID), s.Influence, s.Attitude, s.Email})
		}
	}
}

type stakeholderFlags struct {
	name, role, email, phone, client, influence, attitude, notes string
}

func (f *stakeholderFlags) register(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&f.name, "name", "", "name")
	}
	cmd.Flags().StringVar(&f.role, "role", "", "role")
	cmd.Flags().StringVar(&f.email, "email", "", "email")
	cmd.Flags().StringVar(&f.phone, "phone", "", "phone")
	cmd.Flags().StringVar(&f.client, "client", "", "client id")
	cmd.Flags().StringVar(&f.influence, "influence", "", "Low, Medium or High")
	cmd.Flags().StringVar(&f.attitude, "attitude", "", "Champion, Supporter, Neutral, Skeptic or Blocker")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes")
}

func stakeholderAddCmd() *cobra.Command {
	var f stakeholderFlags
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a stakeholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateStakeholder(ctx, engine.StakeholderCreateOptions{
					Name: args[0], Role: f.role, Email: f.email, Phone: f.phone, ClientID: f.client,
					Influence: f.influence, Attitude: f.attitude, Notes: f.notes, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, s, stakeholderHeader, stakeholderRows([]domain.Stakeholder{s}))
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func stakeholderListCmd() *cobra.Command {
	var f repo.StakeholderFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stakeholders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				list, err := e.ListStakeholders(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, list, stakeholderHeader, stakeholderRows(list))
			})
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&f.Influence, "influence", "", "influence")
	cmd.Flags().StringVar(&f.Attitude, "attitude", "", "attitude")
	return cmd
}

func stakeholderGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a stakeholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.GetStakeholder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, s, stakeholderHeader, stakeholderRows([]domain.Stakeholder{s}))
			})
		},
	}
}

func stakeholderUpdateCmd() *cobra.Command {
	var f stakeholderFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change stakeholder fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateStakeholder(ctx, engine.StakeholderUpdateOptions{
					ID:        args[0],
					Name:      changed(cmd, "name", f.name),
					Role:      changed(cmd, "role", f.role),
					Email:     changed(cmd, "email", f.email),
					Phone:     changed(cmd, "phone", f.phone),
					ClientID:  changed(cmd, "client", f.client),
					Influence: changed(cmd, "influence", f.influence),
					Attitude:  changed(cmd, "attitude", f.attitude),
					Notes:     changed(cmd, "notes", f.notes),
					ActorID:   actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, s, stakeholderHeader, stakeholderRows([]domain.Stakeholder{s}))
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func raidCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "raid",
		Short: "Risks, assumptions, issues, dependencies and decisions",
		Long:  "Risk score = severity x likelihood with Low=1, Medium=2, High=3; 6 and above is High, 3 and above Medium.",
	}
	c.AddCommand(raidAddCmd(), raidListCmd(), raidGetCmd(), raidUpdateCmd(),
		deleteCmd(domain.KindRAID, engine.Engine.DeleteRAID))
	return c
}

var raidHeader = table.Row{"ID", "Kind", "Title", "Status", "Sev", "Lik", "Score", "Band", "Owner", "Due"}

func raidRows(items []domain.RAIDItem) func(table.Writer) {
	return func(tw table.Writer) {
		for _, it := range items {
			score := engine.RiskScore(it.Severity, it.Likelihood)
			tw.AppendRow(table.Row{it.ID, it.Kind, truncate(it.Title, 40), it.Status, it.Severity, it.Likelihood,
				score, engine.RiskBand(score), it.Owner, fmtDate(it.Due)})
		}
	}
}

type raidFlags struct {
	title, desc, severity, likelihood, status, owner, due, resolution, project, client string
}

func (f *raidFlags) register(cmd *cobra.Command, withTitle bool) {
	if withTitle {
		cmd.Flags().StringVar(&f.title, "title", "", "title")
	}
	cmd.Flags().StringVar(&f.desc, "desc", "", "description")
	cmd.Flags().StringVar(&f.severity, "severity", "", "Low, Medium or High")
	cmd.Flags().StringVar(&f.likelihood, "likelihood", "", "Low, Medium or High")
	cmd.Flags().StringVar(&f.status, "status", "", "Open, Monitoring or Closed")
	cmd.Flags().StringVar(&f.owner, "owner", "", "owner")
	cmd.Flags().StringVar(&f.due, "due", "", "due date")
	cmd.Flags().StringVar(&f.resolution, "resolution", "", "mitigation, resolution or rationale")
	cmd.Flags().StringVar(&f.project, "project", "", "project id")
	cmd.Flags().StringVar(&f.client, "client", "", "client id")
}

func raidAddCmd() *cobra.Command {
	var f raidFlags
	cmd := &cobra.Command{
		Use:   "add KIND TITLE",
		Short: "Log a risk, assumption, issue, dependency or decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, err := dueFlag(e, f.due)
				if err != nil {
					return err
				}
				it, err := e.CreateRAID(ctx, engine.RAIDCreateOptions{
					Kind: args[0], Title: args[1], Description: f.desc, Severity: f.severity,
					Likelihood: f.likelihood, Status: f.status, Owner: f.owner, Due: due,
					Resolution: f.resolution, ProjectID: f.project, ClientID: f.client, ActorID: actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, it, raidHeader, raidRows([]domain.RAIDItem{it}))
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func raidListCmd() *cobra.Command {
	var f repo.RAIDFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List RAID items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListRAID(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, items, raidHeader, raidRows(items))
			})
		},
	}
	cmd.Flags().StringVar(&f.Kind, "kind", "", "risk, assumption, issue, dependency or decision")
	cmd.Flags().StringVar(&f.Status, "status", "", "status")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id")
	cmd.Flags().BoolVar(&f.OpenOnly, "open", false, "exclude closed items")
	return cmd
}

func raidGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a RAID item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.GetRAID(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, it, raidHeader, raidRows([]domain.RAIDItem{it}))
			})
		},
	}
}

func raidUpdateCmd() *cobra.Command {
	var f raidFlags
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a RAID item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				due, clear, err := duePatch(cmd, e, "due", f.due)
				if err != nil {
					return err
				}
				it, err := e.UpdateRAID(ctx, engine.RAIDUpdateOptions{
					ID:          args[0],
					Title:       changed(cmd, "title", f.title),
					Description: changed(cmd, "desc", f.desc),
					Severity:    changed(cmd, "severity", f.severity),
					Likelihood:  changed(cmd, "likelihood", f.likelihood),
					Status:      changed(cmd, "status", f.status),
					Owner:       changed(cmd, "owner", f.owner),
					Due:         due,
					ClearDue:    clear,
					Resolution:  changed(cmd, "resolution", f.resolution),
					ProjectID:   changed(cmd, "project", f.project),
					ClientID:    changed(cmd, "client", f.client),
					ActorID:     actor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(cmd, it, raidHeader, raidRows([]domain.RAIDItem{it}))
			})
		},
	}
	f.register(cmd, true)
	return cmd
}
