package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/temotskipa/autoredistrict/pkg/planstore"
)

// plansCommand creates the plans command group for the plan store.
func (c *CLI) plansCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage saved districting plans",
		Long: `Manage saved districting plans.

Plans land in the store named by the config file or AUTOREDISTRICT_STORE:
a directory of JSON files (default), "sqlite:<path>", or a mongodb:// URI.`,
	}

	cmd.AddCommand(c.plansListCommand())
	cmd.AddCommand(c.plansShowCommand())
	cmd.AddCommand(c.plansDeleteCommand())

	return cmd
}

// plansListCommand creates the "plans list" subcommand.
func (c *CLI) plansListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved plans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("open plan store: %w", err)
			}
			defer store.Close()

			infos, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				printInfo("No saved plans")
				return nil
			}

			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.ID,
					info.CreatedAt.Local().Format("2006-01-02 15:04"),
					fmt.Sprintf("%d", info.Districts),
					formatCount(info.Population),
					formatSignedPercent(info.MaxDeviation),
				})
			}

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(styleTableBorder).
				Headers("ID", "Created", "Districts", "Population", "Max Dev").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return styleTableHeader
					}
					s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
					if col == 0 {
						return s.Foreground(colorCyan)
					}
					return s.Foreground(colorWhite)
				})
			fmt.Println(t.Render())
			return nil
		},
	}
}

// plansShowCommand creates the "plans show" subcommand.
func (c *CLI) plansShowCommand() *cobra.Command {
	var (
		output      string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("open plan store: %w", err)
			}
			defer store.Close()

			p, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if interactive {
				return browseDistricts(p)
			}

			printKeyValue("Plan", p.ID)
			printKeyValue("Created", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			printKeyValue("Algorithm", p.Params.Algorithm)
			printKeyValue("Tolerance", formatPercent(p.Params.Tolerance))
			printNewline()
			fmt.Println(districtTable(p.Districts, p.Params.MinorityGroups))
			printNewline()
			printPlanSummary(p)
			printPlanWarnings(p)

			if output != "" {
				if err := writePlan(p, output); err != nil {
					return err
				}
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "export the plan JSON to a file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the districts interactively")

	return cmd
}

// plansDeleteCommand creates the "plans delete" subcommand.
func (c *CLI) plansDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("open plan store: %w", err)
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, planstore.ErrNotFound) {
					return fmt.Errorf("plan %s not found", args[0])
				}
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		},
	}
}
