package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/temotskipa/autoredistrict/pkg/apportion"
)

// apportionCommand creates the apportion command for Huntington-Hill seat
// distribution.
func (c *CLI) apportionCommand() *cobra.Command {
	var (
		seats  int
		state  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "apportion [populations.csv|populations.json]",
		Short: "Apportion legislative seats across states (Huntington-Hill)",
		Long: `Apportion legislative seats across states with the Huntington-Hill
equal-proportions method, the procedure used for the US House since 1941.

The input is a CSV with state,population columns (header optional) or a
JSON object mapping state names to populations.

Examples:
  autoredistrict apportion states2020.csv
  autoredistrict apportion states2020.csv --seats 435 --state California
  autoredistrict apportion states.json -o seats.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runApportion(args[0], seats, state, output)
		},
	}

	cmd.Flags().IntVar(&seats, "seats", 435, "house size to distribute")
	cmd.Flags().StringVar(&state, "state", "", "report a single state's seats")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result as JSON")

	return cmd
}

// runApportion reads the populations, distributes the seats, and reports.
func (c *CLI) runApportion(input string, seats int, state, output string) error {
	populations, err := readPopulations(input)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	result, err := apportion.Apportion(populations, seats)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Apportioned %d seats across %d states", result.HouseSize, len(result.Seats)))

	if state != "" {
		n, ok := result.Seats[state]
		if !ok {
			return fmt.Errorf("unknown state: %s", state)
		}
		printSuccess("%s: %d seats", state, n)
	} else {
		fmt.Println(apportionTable(result, populations))
	}

	if output != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return err
		}
		printFile(output)
	}
	return nil
}

// apportionTable renders the per-state seat table sorted by state name.
func apportionTable(r *apportion.Result, populations map[string]int64) string {
	rows := make([][]string, 0, len(r.Seats))
	for _, s := range r.States() {
		rows = append(rows, []string{
			s,
			formatCount(populations[s]),
			fmt.Sprintf("%d", r.Seats[s]),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("State", "Population", "Seats").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if col == 2 {
				return s.Foreground(colorCyan)
			}
			return s.Foreground(colorWhite)
		})

	return t.Render()
}

// readPopulations loads a state → population map from a CSV or JSON file,
// chosen by extension.
func readPopulations(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parsePopulationsJSON(data)
	}
	return parsePopulationsCSV(data)
}

// parsePopulationsJSON decodes {"State": population, ...}.
func parsePopulationsJSON(data []byte) (map[string]int64, error) {
	var populations map[string]int64
	if err := json.Unmarshal(data, &populations); err != nil {
		return nil, fmt.Errorf("parse populations: %w", err)
	}
	return populations, nil
}

// parsePopulationsCSV decodes state,population rows. The header row is
// detected by a non-numeric second column and skipped.
func parsePopulationsCSV(data []byte) (map[string]int64, error) {
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse populations: %w", err)
	}

	populations := make(map[string]int64, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("parse populations: row %d has %d columns, want 2", i+1, len(rec))
		}
		name := strings.TrimSpace(rec[0])
		pop, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("parse populations: row %d: %w", i+1, err)
		}
		populations[name] = pop
	}
	return populations, nil
}
