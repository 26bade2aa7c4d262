package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/blob"
	"flowpanel/internal/config"
	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

// workspace points storage and exports at a temp dir and returns it.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(core.EnvStorageDriver, "sqlite")
	t.Setenv(core.EnvSQLitePath, filepath.Join(dir, "flowpanel.db"))
	t.Setenv(blob.EnvDriver, "fs")
	t.Setenv(blob.EnvFSRoot, filepath.Join(dir, "exports"))
	t.Setenv("FLOWPANEL_LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := execute(t, args...)
	require.NoError(t, err, "flowpanel %s\n%s", strings.Join(args, " "), errOut)
	return out
}

func loadStandard(t *testing.T) {
	t.Helper()
	mustExecute(t, "reagent", "load-defaults")
	mustExecute(t, "tube", "load-defaults")
}

func TestStandardPanelPersistsAcrossInvocations(t *testing.T) {
	workspace(t)
	loadStandard(t)

	var reagents []domain.Reagent
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, "reagent", "list", "-o", "json")), &reagents))
	require.Len(t, reagents, 4)
	assert.Equal(t, domain.StandardFcBlock, reagents[0].Name)

	out := mustExecute(t, "tube", "list")
	assert.Contains(t, out, "Full_Stain")
	assert.Contains(t, out, "FMO")

	out = mustExecute(t, "matrix", "-o", "csv")
	assert.True(t, strings.HasPrefix(out, "\ufeff"))
	assert.Contains(t, out, "Full_Stain")

	var mix core.MasterMixResult
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, "mastermix", "-o", "json")), &mix))
	require.NotNil(t, mix.Surface)
	require.NotNil(t, mix.Intracellular)
	assert.Equal(t, 6, mix.Surface.TotalTubes)
	assert.Equal(t, 4, mix.Intracellular.TotalTubes)

	out = mustExecute(t, "mastermix", "--extra-tubes", "0")
	assert.Contains(t, out, "Surface staining master mix: 4 tubes + extra = 4")

	_, errOut, err := execute(t, "check")
	require.NoError(t, err)
	assert.Empty(t, errOut)
}

func TestReagentAndTubeEditing(t *testing.T) {
	workspace(t)

	out := mustExecute(t, "reagent", "add", "BB515 Rat Anti-Mouse CD45",
		"--concentration", "200", "--recommended-use", "0.25", "--type", "surface")
	assert.Contains(t, out, `reagent "BB515 Rat Anti-Mouse CD45" saved (CD45, Surface)`)

	mustExecute(t, "tube", "add", "Full", "--reagent", "BB515 Rat Anti-Mouse CD45", "--reagent", "Unknown Dye")
	out = mustExecute(t, "tube", "remove-reagent", "Full", "Unknown Dye")
	assert.Contains(t, out, "now references 1 reagents")

	var plan core.Plan
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, "plan", "--groups", "WT, KO", "--replicates", "2", "-o", "json")), &plan))
	assert.Len(t, plan.Rows, 4)
	assert.Equal(t, "WT", plan.Rows[0].Group)

	mustExecute(t, "tube", "delete", "Full")
	_, _, err := execute(t, "tube", "delete", "Full")
	require.Error(t, err)
	assert.Equal(t, core.KindNotFound, core.ErrorKind(err))
}

func TestInvalidInputIsRejected(t *testing.T) {
	workspace(t)

	_, _, err := execute(t, "reagent", "add", "X", "--concentration", "abc")
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidNumeric, core.ErrorKind(err))

	_, _, err = execute(t, "reagent", "add", "X", "--type", "Bogus")
	assert.Equal(t, core.KindUnknownVariant, core.ErrorKind(err))

	_, _, err = execute(t, "tube", "add", "T", "--control", "Sometimes")
	assert.Equal(t, core.KindUnknownVariant, core.ErrorKind(err))

	_, _, err = execute(t, "volumes", "set", "--per-tube", "0")
	assert.Equal(t, core.KindInvalidNumeric, core.ErrorKind(err))

	_, _, err = execute(t, "matrix")
	assert.Equal(t, core.KindEmptyInput, core.ErrorKind(err))

	mustExecute(t, "tube", "add", "T")
	_, _, err = execute(t, "plan", "--replicates", "0")
	assert.Equal(t, core.KindInvalidReplicate, core.ErrorKind(err))
	_, _, err = execute(t, "plan", "--groups", " , ")
	assert.Equal(t, core.KindEmptyGroups, core.ErrorKind(err))

	_, _, err = execute(t, "matrix", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestVolumesSetKeepsUnsetFields(t *testing.T) {
	workspace(t)
	mustExecute(t, "volumes", "set", "--extra-tubes", "4", "--cell-count", "2")

	var v domain.Volumes
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, "volumes", "show", "-o", "json")), &v))
	assert.Equal(t, domain.Volumes{PerTube: 100, IntracellularPerTube: 50, CellCount: 2, ExtraTubes: 4}, v)
}

func TestProjectSaveAndLoad(t *testing.T) {
	dir := workspace(t)
	loadStandard(t)
	mustExecute(t, "project", "rename", "Liver Fibrosis")
	file := filepath.Join(dir, "panel.yaml")
	mustExecute(t, "project", "save", file)

	body, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "project_name: Liver Fibrosis")

	t.Setenv(core.EnvSQLitePath, filepath.Join(dir, "other.db"))
	out := mustExecute(t, "project", "load", file)
	assert.Contains(t, out, "loaded 4 reagents and 7 tubes")

	var project core.Project
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, "project", "show", "-o", "json")), &project))
	assert.Equal(t, "Liver Fibrosis", project.Name)
	assert.Equal(t, 7, project.Tubes.Len())
}

func TestProtocolOutputs(t *testing.T) {
	dir := workspace(t)
	loadStandard(t)

	out := mustExecute(t, "protocol", "--mix")
	assert.Contains(t, out, "Intracellular working mix")

	pdf := filepath.Join(dir, "protocol.pdf")
	mustExecute(t, "protocol", "--pdf", pdf)
	body, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestExportWritesArtifacts(t *testing.T) {
	dir := workspace(t)
	loadStandard(t)
	mustExecute(t, "project", "rename", "Panel")

	var record export.Record
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, "export", "-f", "matrix,project_json", "-o", "json")), &record))
	assert.Equal(t, export.StatusSucceeded, record.Status)
	require.Len(t, record.Artifacts, 2)
	for _, a := range record.Artifacts {
		_, err := os.Stat(filepath.Join(dir, "exports", filepath.FromSlash(a.Key)))
		assert.NoError(t, err, a.Key)
	}

	_, _, err := execute(t, "export", "-f", "docx")
	assert.Equal(t, core.KindUnknownVariant, core.ErrorKind(err))
}

func TestBuildLogger(t *testing.T) {
	logger, err := buildLogger(config.LogSettings{Level: "warn", Encoding: "console"}, false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	logger, err = buildLogger(config.LogSettings{Level: "warn", Encoding: "json"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = buildLogger(config.LogSettings{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	worker := export.NewWorker(export.NewExporter(svc, blob.NewMemory()), 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, zap.NewNop(), "127.0.0.1:0", nil, worker) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}
