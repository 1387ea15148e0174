package main

import (
	"coveriq/internal/regression"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var checkCmd = &cobra.Command{
	Use:   "check [battery.yaml]",
	Short: "Run a regression battery of filter cases",
	Long: `Filters every export listed in a battery file and compares the result
with the expected component ids, count, or rejection. Exits non-zero when any
case fails. Defaults to .coveriq/battery.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	path := regression.DefaultBatteryPath(".")
	if len(args) == 1 {
		path = args[0]
	}
	battery, err := regression.LoadBattery(path)
	if err != nil {
		return err
	}

	opts, err := filterOptions()
	if err != nil {
		return err
	}
	results, err := regression.RunBattery(ctx, battery, opts)
	if err != nil {
		return err
	}

	t := newTable(formatTable)
	t.AppendHeader(table.Row{"Case", "Status", "Components", "ms", "Error"})
	for _, r := range results {
		status := "PASS"
		if !r.Success {
			status = "FAIL"
		}
		t.AppendRow(table.Row{r.CaseID, status, r.Components, r.DurationMs, r.Error})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 60},
	})
	if err := render(cmd.OutOrStdout(), t, formatTable); err != nil {
		return err
	}

	failed := regression.Failed(results)
	logger.Info("Battery finished",
		zap.String("battery", path),
		zap.Int("cases", len(results)),
		zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, len(results))
	}
	return nil
}
