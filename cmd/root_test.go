package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bigbio/mad-decoy/internal/pipeline"
)

const header = "protein_accessions\tprotein_global_qvalue\tis_decoy\tcondition\tdataset_accession"

func writeDatasets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PXD1.tsv"), []byte(header+"\n"+
		"P1\t0.01\t0\theart\tPXD1\n"+
		"P2\t0.5\t0\theart\tPXD1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PXD2.tsv"), []byte(header+"\n"+
		"P3\t0.02\t0\tliver\tPXD2\n"), 0o644))
	return dir
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"merge", "inspect"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "mad-decoy", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestMergeCommand_Flags(t *testing.T) {
	for name, def := range map[string]string{
		"folder-path":       "",
		"output-file":       "",
		"filter-qvalue":     "0",
		"filter-decoy":      "false",
		"concurrency":       "4",
		"format":            "",
		"pattern":           "*.tsv",
		"undefined-ratio":   "keep",
		"keep-input-decoys": "false",
		"summary":           "",
	} {
		flag := mergeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "merge should have --%s flag", name)
		assert.Equal(t, def, flag.DefValue, "--%s default", name)
	}
}

func TestInspectCommand_Flags(t *testing.T) {
	for _, name := range []string{"folder-path", "pattern", "keep-input-decoys"} {
		assert.NotNil(t, inspectCmd.Flags().Lookup(name), "inspect should have --%s flag", name)
	}
}

func TestMergeCommand_EndToEnd(t *testing.T) {
	t.Chdir(t.TempDir())
	in := writeDatasets(t)
	outDir := t.TempDir()
	out := filepath.Join(outDir, "merged.csv")
	summary := filepath.Join(outDir, "summary.yaml")

	rootCmd.SetArgs([]string{"merge",
		"--folder-path", in,
		"--output-file", out,
		"--filter-qvalue", "0.3",
		"--concurrency", "2",
		"--summary", summary,
	})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "protein_accessions,protein_global_qvalue,is_decoy,condition,dataset_accession,protein_adjusted_qvalue", lines[0])
	// fake_protein_1 sits at 1/3 after adjustment and is filtered out.
	assert.Len(t, lines, 4)

	raw, err := os.ReadFile(summary)
	require.NoError(t, err)
	var s pipeline.RunSummary
	require.NoError(t, yaml.Unmarshal(raw, &s))
	assert.Len(t, s.Datasets, 2)
	assert.Equal(t, 1, s.Synthesized())
	assert.Equal(t, 4, s.Deduplicated)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 0.3, *cfg.Filter.QValue)
}

func TestInspectCommand_PrintsJSON(t *testing.T) {
	t.Chdir(t.TempDir())
	in := writeDatasets(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"inspect", "--folder-path", in})
	require.NoError(t, rootCmd.Execute())

	var got []pipeline.DatasetSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "PXD1.tsv", got[0].Name)
	assert.Equal(t, 2, got[0].Targets)
	assert.Equal(t, 1, got[0].Synthesized)
	assert.Equal(t, "PXD2.tsv", got[1].Name)
}
