package workdir

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/eval-fanout/internal/evalcfg"
	"yqhp/eval-fanout/internal/jobgraph"
	"yqhp/eval-fanout/internal/partition"
)

const workdirConfig = `{
	"proj_id": "emep",
	"exp_id": "trends",
	"json_basedir": "/data/aeroval",
	"coldata_basedir": "/data/coldata",
	"obs_cfg": {"AERONET": {"obs_id": "AeronetSunV3Lev2.daily", "obs_vars": "od550aer"}},
	"model_cfg": {"EMEP": {"model_id": "EMEP.cams"}, "IFS": {"model_id": "IFS-OSUITE"}}
}`

func setupWorkdirTest(t *testing.T) (*Workdir, *partition.Plan) {
	t.Helper()
	w, err := Create(t.TempDir(), "r1")
	require.NoError(t, err)

	cfg, err := evalcfg.Parse([]byte(workdirConfig), "json")
	require.NoError(t, err)
	plan, err := partition.New(partition.Options{RunID: "r1"}, nil).Partition(cfg, "cfg_emep")
	require.NoError(t, err)
	return w, plan
}

func TestCreate_Layout(t *testing.T) {
	w, _ := setupWorkdirTest(t)
	assert.Equal(t, "eval-fanout.r1", filepath.Base(w.Root))
	for _, dir := range []string{w.ConfigDir(), w.DescriptorDir(), w.ScriptDir()} {
		assert.DirExists(t, dir)
	}

	_, err := Create(t.TempDir(), "")
	assert.Error(t, err)
}

func TestWritePlan(t *testing.T) {
	w, plan := setupWorkdirTest(t)

	files, canonical, err := w.WritePlan(plan)
	require.NoError(t, err)
	require.Len(t, files, 2)

	sub, err := evalcfg.Load(files["cfg_emep_EMEP_allobs"])
	require.NoError(t, err)
	assert.Equal(t, "/data/aeroval/r1.0001", sub.JSONBaseDir())
	assert.Equal(t, []string{"EMEP"}, sub.Models())

	canon, err := evalcfg.Load(canonical)
	require.NoError(t, err)
	assert.Equal(t, "/data/aeroval", canon.JSONBaseDir())
	assert.Equal(t, []string{"EMEP", "IFS"}, canon.Models())
}

func TestManifest_RoundTrip(t *testing.T) {
	w, plan := setupWorkdirTest(t)
	files, canonical, err := w.WritePlan(plan)
	require.NoError(t, err)

	m := &Manifest{
		RunID:     "r1",
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Configs:   []ConfigEntry{NewConfigEntry("/in/cfg_emep.json", plan, files, canonical)},
		Units: []*jobgraph.Unit{{
			Name:     "pya_r1_ana_0001_EMEP_allobs",
			Kind:     jobgraph.KindAnalysis,
			WaitFor:  []string{"pya_r1_caching_AeronetSunV3Lev2.daily_*"},
			Commands: []string{"aeroval_run_json_cfg cfg_emep_EMEP_allobs.json"},
		}},
		Submitted: true,
	}
	require.NoError(t, w.WriteManifest(m))

	got, err := ReadManifest(w.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Equal(t, "emep", got.Configs[0].Project)
	assert.Equal(t, "/data/aeroval/r1.0002", got.Configs[0].SubConfigs[1].OutputDir)
}

func TestReadManifest_Errors(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), ManifestFile))
	assert.Error(t, err)
}
