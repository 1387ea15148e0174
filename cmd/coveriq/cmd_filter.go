package main

import (
	"bytes"
	"context"
	"coveriq/internal/config"
	"coveriq/internal/figma"
	"coveriq/internal/filter"
	"coveriq/internal/stage"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// filter flags
	featureFile   string
	featureText   string
	rootPathFlag  string
	policyFlag    string
	noSize        bool
	maxDepthFlag  int
	outputPath    string
	outputFormat  string
	saveStages    bool
	sessionFlag   string
	filterWorkers int
)

var filterCmd = &cobra.Command{
	Use:   "filter <export.json>...",
	Short: "Extract interactive components from design exports",
	Long: `Reads one or more Figma JSON exports ("-" for stdin) and writes the
components that carry interactions or style overrides, in document order.

With a single input the result goes to stdout or the --output file. With
several inputs, --output names a directory and each result is written to
<input>.features.json inside it.`,
	Example: `  coveriq filter export.json
  coveriq filter --root-path figma_data.document --description "Checkout flow" payload.json
  coveriq filter -o out/ --format json a.json b.json
  coveriq filter --save export.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFilter,
}

func initFilterFlags() {
	filterCmd.Flags().StringVar(&featureFile, "feature", "", "File holding the feature description")
	filterCmd.Flags().StringVar(&featureText, "description", "", "Feature description text")
	filterCmd.MarkFlagsMutuallyExclusive("feature", "description")
	filterCmd.Flags().StringVar(&rootPathFlag, "root-path", "", "Dotted path to the tree root (default from config)")
	filterCmd.Flags().StringVar(&policyFlag, "policy", "", "Retention policy: strict or structural (default from config)")
	filterCmd.Flags().BoolVar(&noSize, "no-size", false, "Omit size from components")
	filterCmd.Flags().IntVar(&maxDepthFlag, "max-depth", 0, "Nesting ceiling (0 = config, negative = unbounded)")
	filterCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file, or directory for several inputs")
	filterCmd.Flags().StringVar(&outputFormat, "format", formatJSON, "Output format: json, table, markdown")
	filterCmd.Flags().BoolVar(&saveStages, "save", false, "Keep input and result in the stage store")
	filterCmd.Flags().StringVar(&sessionFlag, "session", "", "Session to save under (default: new session)")
	filterCmd.Flags().IntVar(&filterWorkers, "workers", 0, "Inputs filtered in parallel (0 = GOMAXPROCS)")
}

// filterJob is one input and its outcome.
type filterJob struct {
	input  string
	raw    []byte
	result *filter.Result
}

func runFilter(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := checkFormat(outputFormat); err != nil {
		return err
	}
	if sessionFlag != "" && len(args) > 1 {
		return fmt.Errorf("--session can only be used with a single input")
	}

	opts, err := filterOptions()
	if err != nil {
		return err
	}

	// Refuse --save before any output is written.
	var store stage.Store
	if saveStages {
		if store, err = openPersistentStore(); err != nil {
			return fmt.Errorf("--save: %w", err)
		}
		defer store.Close()
	}

	jobs := make([]*filterJob, len(args))
	for i, a := range args {
		jobs[i] = &filterJob{input: a}
	}

	workers := filterWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := readInput(cmd, job.input)
			if err != nil {
				return err
			}
			res, err := filter.FilterJSON(bytes.NewReader(raw), opts)
			if err != nil {
				return fmt.Errorf("%s: %w", job.input, err)
			}
			job.raw, job.result = raw, res
			logger.Debug("Filtered input",
				zap.String("input", job.input),
				zap.Int("components", len(res.FigmaData)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeResults(cmd, jobs); err != nil {
		return err
	}

	if store != nil {
		return saveJobs(ctx, cmd, store, jobs)
	}
	return nil
}

// filterOptions starts from the configured options and applies any flags
// that were set.
func filterOptions() (filter.Options, error) {
	opts, err := currentConfig().FilterOptions()
	if err != nil {
		return opts, err
	}
	if rootPathFlag != "" {
		opts.RootPath = figma.ParsePath(rootPathFlag)
	}
	if policyFlag != "" {
		if opts.Policy, err = filter.ParsePolicy(policyFlag); err != nil {
			return opts, err
		}
	}
	if noSize {
		opts.OmitSize = true
	}
	if maxDepthFlag != 0 {
		opts.MaxDepth = maxDepthFlag
	}

	switch {
	case featureFile != "" && featureText != "":
		return opts, fmt.Errorf("--feature and --description are mutually exclusive")
	case featureFile != "":
		data, err := os.ReadFile(featureFile)
		if err != nil {
			return opts, fmt.Errorf("failed to read feature description: %w", err)
		}
		desc := strings.TrimRight(string(data), "\r\n")
		opts.FeatureDescription = &desc
	case featureText != "":
		desc := featureText
		opts.FeatureDescription = &desc
	}
	return opts, nil
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func writeResults(cmd *cobra.Command, jobs []*filterJob) error {
	if outputPath == "" {
		for _, job := range jobs {
			if err := writeComponents(cmd.OutOrStdout(), job.result, outputFormat); err != nil {
				return err
			}
		}
		return nil
	}

	if len(jobs) == 1 {
		return writeFile(outputPath, jobs[0].result)
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, job := range jobs {
		path := filepath.Join(outputPath, resultName(job.input))
		if err := writeFile(path, job.result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s (%d components)\n", job.input, path, len(job.result.FigmaData))
	}
	return nil
}

func writeFile(path string, res *filter.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := writeComponents(f, res, outputFormat); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// resultName maps an input path to its output file name.
func resultName(input string) string {
	if input == "-" {
		return "stdin.features.json"
	}
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".features.json"
}

func saveJobs(ctx context.Context, cmd *cobra.Command, store stage.Store, jobs []*filterJob) error {
	for _, job := range jobs {
		session := sessionFlag
		if session == "" {
			session = stage.NewSessionID()
		}
		if _, err := store.Put(ctx, session, stage.StageFigmaData, json.RawMessage(job.raw)); err != nil {
			return err
		}
		version, err := store.Put(ctx, session, stage.StageFeatureList, job.result)
		if err != nil {
			return err
		}
		logger.Info("Saved stage outputs",
			zap.String("session", session),
			zap.String("input", job.input),
			zap.Int64("version", version))
		fmt.Fprintf(cmd.ErrOrStderr(), "session %s (%s, v%d)\n", session, job.input, version)
	}
	return nil
}

// currentConfig returns the loaded config, or defaults when the root
// command's pre-run did not execute.
func currentConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

func openStore() (stage.Store, error) {
	c := currentConfig()
	return stage.Open(c.Store.Driver, c.Store.DatabasePath)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
