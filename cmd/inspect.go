package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bigbio/mad-decoy/internal/pipeline"
)

var (
	inspectFolderPath      string
	inspectPattern         string
	inspectKeepInputDecoys bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print per-dataset decoy accounting without merging",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		if flags.Changed("folder-path") {
			cfg.Input.FolderPath = inspectFolderPath
		}
		if flags.Changed("pattern") {
			cfg.Input.Pattern = inspectPattern
		}
		if flags.Changed("keep-input-decoys") {
			cfg.Augment.KeepInputDecoys = inspectKeepInputDecoys
		}
		if cfg.Input.FolderPath == "" {
			return eris.New("inspect: --folder-path is required")
		}

		opts, err := pipeline.NewOptions(cfg)
		if err != nil {
			return err
		}
		opts.Output = ""

		summaries, err := pipeline.Inspect(cmd.Context(), opts)
		if err != nil {
			return eris.Wrap(err, "inspect")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	},
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectFolderPath, "folder-path", "", "folder, archive, table or ftp/http/s3 location holding the datasets")
	f.StringVar(&inspectPattern, "pattern", "*.tsv", "comma-separated globs selecting dataset files")
	f.BoolVar(&inspectKeepInputDecoys, "keep-input-decoys", false, "count the datasets' own decoys when synthesizing")
	rootCmd.AddCommand(inspectCmd)
}
