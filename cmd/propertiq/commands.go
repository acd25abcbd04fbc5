package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/propertiq/internal/adapter/sqlite"
	"github.com/neomorfeo/propertiq/internal/app"
	"github.com/neomorfeo/propertiq/internal/config"
	"github.com/neomorfeo/propertiq/internal/domain"

	riveradapter "github.com/neomorfeo/propertiq/internal/adapter/river"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(c.cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer store.Close()

			applied, err := riveradapter.Migrate(cmd.Context(), store.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date (%d job queue versions applied)\n", c.cfg.Database.Path, applied)
			return nil
		},
	}
}

// seedFile is the YAML fixture read by the seed command. Team and user
// references in properties may use a team name or a user email declared
// earlier in the same file.
type seedFile struct {
	Teams       []app.CreateTeamInput `yaml:"teams"`
	Invitations []struct {
		Team     string              `yaml:"team"`
		Contacts []app.ContactInvite `yaml:"contacts"`
	} `yaml:"invitations"`
	Properties []app.CompletePropertyInput `yaml:"properties"`
}

func (c *cli) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load teams, contacts and properties from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var fixture seedFile
			if err := yaml.Unmarshal(data, &fixture); err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}
			return withServices(cmd.Context(), c.cfg, func(ctx context.Context, store *sqlite.Store, svc services) error {
				return seed(ctx, cmd.OutOrStdout(), store, svc, fixture)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixture")
	return cmd
}

func seed(ctx context.Context, out io.Writer, store *sqlite.Store, svc services, fixture seedFile) error {
	ref := refs{teams: map[string]string{}, users: map[string]string{}}

	teams := app.NewTeamService(store.Teams(), store.Users())
	for _, in := range fixture.Teams {
		team, err := teams.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("team %q: %w", in.Name, err)
		}
		ref.teams[team.Name] = team.ID
		fmt.Fprintf(out, "team %s created (%s)\n", team.Name, team.ID)
	}

	for _, inv := range fixture.Invitations {
		result := svc.composite.InviteTeamContacts(ctx, ref.team(inv.Team), inv.Contacts)
		for _, i := range result.Data.Invitations {
			ref.users[i.Email] = i.UserID
		}
		if err := report(out, "invitations for "+inv.Team, result.Operations, result.Error); err != nil {
			return err
		}
	}

	for _, in := range fixture.Properties {
		ref.resolve(&in)
		result := svc.composite.CreateCompleteProperty(ctx, in)
		if err := report(out, "property "+in.Building.Name, result.Operations, result.Error); err != nil {
			if len(result.RollbackOperations) > 0 {
				renderOperations(out, "rollback", result.RollbackOperations)
			}
			return err
		}
	}
	return nil
}

// refs maps fixture names to generated identifiers.
type refs struct {
	teams map[string]string
	users map[string]string
}

func (r refs) team(name string) string {
	if id, ok := r.teams[name]; ok {
		return id
	}
	return name
}

func (r refs) user(email string) string {
	if id, ok := r.users[email]; ok {
		return id
	}
	return email
}

func (r refs) resolve(in *app.CompletePropertyInput) {
	in.Building.TeamID = r.team(in.Building.TeamID)
	for i := range in.BuildingContacts {
		in.BuildingContacts[i].UserID = r.user(in.BuildingContacts[i].UserID)
	}
	for i := range in.Lots {
		if in.Lots[i].TenantID != "" {
			in.Lots[i].TenantID = r.user(in.Lots[i].TenantID)
		}
	}
	for _, contacts := range in.LotContacts {
		for i := range contacts {
			contacts[i].UserID = r.user(contacts[i].UserID)
		}
	}
}

func report(out io.Writer, title string, ops []app.Operation, errInfo *domain.ErrorInfo) error {
	renderOperations(out, title, ops)
	if errInfo != nil {
		return fmt.Errorf("%s: %s", title, errInfo.Message)
	}
	return nil
}

func renderOperations(out io.Writer, title string, ops []app.Operation) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Service", "Entity", "Entity ID", "Type", "Status", "Error"})
	for _, op := range ops {
		tw.AppendRow(table.Row{op.Service, op.Entity, op.EntityID, op.Type, op.Status, op.Error})
	}
	tw.Render()
}

func (c *cli) statsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <team-id>",
		Short: "Show portfolio and workflow counts for a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), c.cfg, func(ctx context.Context, _ *sqlite.Store, svc services) error {
				result := svc.composite.CompositeStats(ctx, args[0])
				if result.Error != nil && result.Data.Team == nil {
					return fmt.Errorf("stats: %s", result.Error.Message)
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(result.Data)
				}
				renderStats(cmd.OutOrStdout(), result.Data)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func renderStats(out io.Writer, s app.TeamStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	if s.Team != nil {
		tw.SetTitle(s.Team.Name)
	}
	tw.AppendHeader(table.Row{"Metric", "Count"})
	tw.AppendRow(table.Row{"buildings", s.BuildingCount})
	tw.AppendRow(table.Row{"lots", s.LotCount})
	tw.AppendRow(table.Row{"occupied lots", s.OccupiedLots})
	tw.AppendRow(table.Row{"users", s.UserCount})
	if len(s.InterventionsByStatus) > 0 {
		tw.AppendSeparator()
		for _, status := range slices.Sorted(maps.Keys(s.InterventionsByStatus)) {
			tw.AppendRow(table.Row{"interventions " + string(status), s.InterventionsByStatus[status]})
		}
	}
	for source, info := range s.Errors {
		tw.AppendFooter(table.Row{source + " unavailable", info.Message})
	}
	tw.Render()
}

// withServices opens the store and an insert-only job queue client, so
// invitations queued by the CLI are delivered by the next serve.
func withServices(ctx context.Context, cfg config.Config, fn func(context.Context, *sqlite.Store, services) error) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	client, err := riveradapter.Setup(ctx, store.DB())
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}

	svc := newServices(store, nil, riveradapter.NewPublisher(client), riveradapter.NewInvitationSender(client))
	return fn(ctx, store, svc)
}
