package main

import (
	"bytes"
	"coveriq/internal/diff"
	"coveriq/internal/filter"
	"coveriq/internal/stage"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showSession string
	showVersion int64
	showMeta    bool

	diffSession string
	diffFrom    int64
	diffTo      int64
)

var showCmd = &cobra.Command{
	Use:   "show <stage>",
	Short: "Print a stored stage output",
	Long: `Prints the output stored for a stage of a session. Stages are
figma_data, feature_list, test_plan and test_cases (or figma, feature, plan,
cases). The latest version is shown unless --version is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var diffCmd = &cobra.Command{
	Use:   "diff <stage>",
	Short: "Compare two stored versions of a stage",
	Long: `Prints a unified diff between two versions of a stage output. By
default the latest version is compared with the one before it. For
feature_list, a summary of added, removed and changed components comes first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions in the stage store",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

func initStageFlags() {
	showCmd.Flags().StringVar(&showSession, "session", "", "Session id (required)")
	showCmd.Flags().Int64Var(&showVersion, "version", 0, "Version to show (0 = latest)")
	showCmd.Flags().BoolVar(&showMeta, "meta", false, "Wrap the data with session, stage, version and timestamp")
	_ = showCmd.MarkFlagRequired("session")

	diffCmd.Flags().StringVar(&diffSession, "session", "", "Session id (required)")
	diffCmd.Flags().Int64Var(&diffFrom, "from", 0, "Older version (0 = the one before --to)")
	diffCmd.Flags().Int64Var(&diffTo, "to", 0, "Newer version (0 = latest)")
	_ = diffCmd.MarkFlagRequired("session")
}

// openPersistentStore opens the configured store, refusing the memory
// driver: nothing stored there outlives the process.
func openPersistentStore() (stage.Store, error) {
	if d := currentConfig().Store.Driver; d == "" || d == "memory" {
		return nil, fmt.Errorf("store driver %q keeps nothing between runs; configure sqlite to keep stage outputs", "memory")
	}
	return openStore()
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	st, err := stage.Parse(args[0])
	if err != nil {
		return err
	}
	if showSession == "" {
		return stage.ErrInvalidSession
	}

	store, err := openPersistentStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.GetVersion(ctx, showSession, st, showVersion)
	if err != nil {
		return err
	}
	logger.Debug("Loaded stage entry",
		zap.String("session", entry.Session),
		zap.String("stage", string(entry.Stage)),
		zap.Int64("version", entry.Version))

	if showMeta {
		return writeJSON(cmd.OutOrStdout(), entry)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, entry.Data, "", "  "); err != nil {
		return fmt.Errorf("stored data is not valid JSON: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(cmd.OutOrStdout())
	return err
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	st, err := stage.Parse(args[0])
	if err != nil {
		return err
	}
	if diffSession == "" {
		return stage.ErrInvalidSession
	}

	store, err := openPersistentStore()
	if err != nil {
		return err
	}
	defer store.Close()

	newer, err := store.GetVersion(ctx, diffSession, st, diffTo)
	if err != nil {
		return err
	}
	from := diffFrom
	if from == 0 {
		from = newer.Version - 1
	}
	if from < 1 {
		return fmt.Errorf("%s has a single version in session %s; nothing to compare", st, diffSession)
	}
	older, err := store.GetVersion(ctx, diffSession, st, from)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if st == stage.StageFeatureList {
		var a, b filter.Result
		if err := older.Decode(&a); err != nil {
			return err
		}
		if err := newer.Decode(&b); err != nil {
			return err
		}
		changes, err := diff.Components(&a, &b)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, changes)
	}

	hunks, err := diff.NewEngine().JSON(older.Data, newer.Data)
	if err != nil {
		return err
	}
	logger.Debug("Compared stage versions",
		zap.String("stage", string(st)),
		zap.Int64("from", older.Version),
		zap.Int64("to", newer.Version),
		zap.Int("hunks", len(hunks)))
	if len(hunks) == 0 {
		fmt.Fprintf(out, "%s v%d and v%d are identical\n", st, older.Version, newer.Version)
		return nil
	}
	return diff.WriteUnified(out,
		fmt.Sprintf("%s v%d", st, older.Version),
		fmt.Sprintf("%s v%d", st, newer.Version),
		hunks)
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	store, err := openPersistentStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}

	t := newTable(formatTable)
	t.AppendHeader(table.Row{"Session", "Stages", "Updated"})
	for _, id := range sessions {
		var names []string
		var updated time.Time
		for _, st := range stage.All() {
			e, err := store.Get(ctx, id, st)
			if errors.Is(err, stage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			names = append(names, fmt.Sprintf("%s(v%d)", st, e.Version))
			if e.UpdatedAt.After(updated) {
				updated = e.UpdatedAt
			}
		}
		t.AppendRow(table.Row{id, strings.Join(names, " "), updated.Local().Format(time.DateTime)})
	}
	return render(cmd.OutOrStdout(), t, formatTable)
}
