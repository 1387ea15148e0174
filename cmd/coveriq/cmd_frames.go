package main

import (
	"bytes"
	"coveriq/internal/figma"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	framesURL      string
	framesFormat   string
	framesRootPath string
)

var framesCmd = &cobra.Command{
	Use:   "frames <export.json>",
	Short: "List the top-level frames on each page",
	Long: `Lists the FRAME nodes that sit directly on each page of a Figma export.
With --url, each frame also gets the prototype link that opens it.`,
	Args: cobra.ExactArgs(1),
	RunE: runFrames,
}

var urlCmd = &cobra.Command{
	Use:   "url <figma-link>",
	Short: "Show the file key and project name of a Figma link",
	Args:  cobra.ExactArgs(1),
	RunE:  runURL,
}

func initFramesFlags() {
	framesCmd.Flags().StringVar(&framesURL, "url", "", "File link used to build per-frame prototype URLs")
	framesCmd.Flags().StringVar(&framesRootPath, "root-path", "", "Dotted path to the tree root (default from config)")
	framesCmd.Flags().StringVar(&framesFormat, "format", formatTable, "Output format: json, table, markdown")
}

func runFrames(cmd *cobra.Command, args []string) error {
	if err := checkFormat(framesFormat); err != nil {
		return err
	}

	var ref *figma.FileRef
	if framesURL != "" {
		r, err := figma.ParseFileURL(framesURL)
		if err != nil {
			return err
		}
		ref = &r
	}

	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	doc, err := figma.Decode(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	opts, err := currentConfig().FilterOptions()
	if err != nil {
		return err
	}
	root := opts.RootPath
	if framesRootPath != "" {
		root = figma.ParsePath(framesRootPath)
	}

	frames, err := figma.Frames(doc, root)
	if err != nil {
		return err
	}
	logger.Debug("Listed frames", zap.String("input", args[0]), zap.Int("frames", len(frames)))
	return writeFrames(cmd.OutOrStdout(), frames, ref, framesFormat)
}

func runURL(cmd *cobra.Command, args []string) error {
	ref, err := figma.ParseFileURL(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "key:     %s\n", ref.Key)
	fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", ref.ProjectName)
	return nil
}
