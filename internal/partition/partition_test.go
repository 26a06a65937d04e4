package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/eval-fanout/internal/evalcfg"
	"yqhp/eval-fanout/pkg/jsondoc"
)

func setupPartitionTest(t *testing.T, split bool) (*Partitioner, *evalcfg.Config) {
	t.Helper()
	cfg, err := evalcfg.Parse([]byte(`{
		"proj_id": "emep",
		"exp_id": "trends",
		"json_basedir": "/data/aeroval",
		"coldata_basedir": "/data/coldata",
		"obs_cfg": {
			"AERONET": {"obs_id": "AeronetSunV3Lev2.daily", "obs_vars": ["od550aer"]},
			"EBAS": {"obs_id": "EBASMC", "obs_vars": ["concpm10", "concpm25"]}
		},
		"model_cfg": {
			"EMEP": {"model_id": "EMEP.cams"},
			"IFS": {"model_id": "IFS-OSUITE"}
		},
		"plot_types": {"EMEP": "overlay"},
		"var_order_menu": ["od550aer"]
	}`), "json")
	require.NoError(t, err)
	return New(Options{RunID: "run1", SplitNetworks: split}, nil), cfg
}

func TestPartition_PerNetwork(t *testing.T) {
	p, cfg := setupPartitionTest(t, true)

	plan, err := p.Partition(cfg, "cfg_emep")
	require.NoError(t, err)
	require.Len(t, plan.SubConfigs, 4)
	assert.Equal(t, "run1", plan.RunID)

	want := []struct {
		index int
		model string
		net   string
		key   string
		hint  string
	}{
		{1, "EMEP", "AERONET", "cfg_emep_EMEP_AERONET", "pya_run1_caching_AeronetSunV3Lev2.daily_*"},
		{2, "EMEP", "EBAS", "cfg_emep_EMEP_EBAS", "pya_run1_caching_EBASMC_*"},
		{3, "IFS", "AERONET", "cfg_emep_IFS_AERONET", "pya_run1_caching_AeronetSunV3Lev2.daily_*"},
		{4, "IFS", "EBAS", "cfg_emep_IFS_EBAS", "pya_run1_caching_EBASMC_*"},
	}
	for i, w := range want {
		sc := plan.SubConfigs[i]
		assert.Equal(t, w.index, sc.Index)
		assert.Equal(t, w.model, sc.Model)
		assert.Equal(t, w.net, sc.NetworkTag)
		assert.Equal(t, []string{w.net}, sc.Networks)
		assert.Equal(t, w.key, sc.OutputKey)
		assert.Equal(t, []string{w.hint}, sc.CacheHint)
		assert.Equal(t, []string{w.model}, sc.Config().Models())
		assert.Equal(t, []string{w.net}, sc.Config().NetworkKeys())
	}

	assert.Equal(t, "/data/aeroval/run1.0003", plan.SubConfigs[2].JSONOutputDir())
	assert.Equal(t, "/data/coldata/run1.0003", plan.SubConfigs[2].Config().ColdataBaseDir())

	hints := plan.CacheHints()
	assert.Equal(t, []string{"pya_run1_caching_EBASMC_*"}, hints["cfg_emep_IFS_EBAS"])
}

func TestPartition_PlotTypesRestrictedWhenPresent(t *testing.T) {
	p, cfg := setupPartitionTest(t, false)

	plan, err := p.Partition(cfg, "cfg")
	require.NoError(t, err)
	require.Len(t, plan.SubConfigs, 2)

	emepPlots, ok := plan.SubConfigs[0].Config().Document().GetObject(evalcfg.KeyPlotTypes)
	require.True(t, ok)
	assert.Equal(t, []string{"EMEP"}, emepPlots.Keys())

	ifsPlots, ok := plan.SubConfigs[1].Config().Document().GetObject(evalcfg.KeyPlotTypes)
	require.True(t, ok)
	assert.Equal(t, 0, ifsPlots.Len())
}

func TestPartition_SuperObsKeepsNetworksTogether(t *testing.T) {
	p, cfg := setupPartitionTest(t, true)
	obs, _ := cfg.Document().GetObject(evalcfg.KeyObservations)
	obs.Set("AERONET-combined", jsondoc.MustObject(
		"obs_id", []any{"AERONET", "EBAS"},
		"obs_vars", []any{"od550aer"},
		"is_superobs", true,
	))

	plan, err := p.Partition(cfg, "cfg")
	require.NoError(t, err)
	require.Len(t, plan.SubConfigs, 2)

	for i, sc := range plan.SubConfigs {
		assert.Equal(t, "allobs", sc.NetworkTag)
		assert.Equal(t, i+1, sc.Index)
		assert.Len(t, sc.Config().NetworkKeys(), 3)
		assert.Equal(t, []string{
			"pya_run1_caching_AeronetSunV3Lev2.daily_*",
			"pya_run1_caching_EBASMC_*",
		}, sc.CacheHint)
	}
	assert.Equal(t, "cfg_IFS_allobs", plan.SubConfigs[1].OutputKey)
}

func TestPartition_TwoModelsOneNetwork(t *testing.T) {
	p, cfg := setupPartitionTest(t, true)
	cfg.RestrictNetworks("EBAS")

	plan, err := p.Partition(cfg, "cfg")
	require.NoError(t, err)
	require.Len(t, plan.SubConfigs, 2)
	assert.Equal(t, "/data/aeroval/run1.0001", plan.SubConfigs[0].JSONOutputDir())
	assert.Equal(t, "/data/aeroval/run1.0002", plan.SubConfigs[1].JSONOutputDir())
}

func TestPartition_IndexContinuesAcrossConfigs(t *testing.T) {
	p, cfg := setupPartitionTest(t, false)

	first, err := p.Partition(cfg, "cfg_a")
	require.NoError(t, err)
	second, err := p.Partition(cfg, "cfg_b")
	require.NoError(t, err)

	assert.Equal(t, 2, first.SubConfigs[1].Index)
	assert.Equal(t, 3, second.SubConfigs[0].Index)
	assert.Equal(t, "/data/aeroval/run1.0004", second.SubConfigs[1].JSONOutputDir())
}

func TestPartition_DuplicateStemRejected(t *testing.T) {
	p, cfg := setupPartitionTest(t, false)

	_, err := p.Partition(cfg, "cfg")
	require.NoError(t, err)

	_, err = p.Partition(cfg, "cfg")
	assert.ErrorIs(t, err, ErrDuplicateOutputKey)

	// the failed call consumed no index
	plan, err := p.Partition(cfg, "other")
	require.NoError(t, err)
	assert.Equal(t, 3, plan.SubConfigs[0].Index)
}

func TestPartition_StructuralErrors(t *testing.T) {
	p, cfg := setupPartitionTest(t, true)
	cfg.Document().Delete(evalcfg.KeyModels)

	plan, err := p.Partition(cfg, "cfg")
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, evalcfg.ErrMissingKey)

	_, err = p.Partition(nil, "cfg")
	assert.Error(t, err)
}

func TestPartition_SourceUntouched(t *testing.T) {
	p, cfg := setupPartitionTest(t, true)
	before, err := cfg.Marshal()
	require.NoError(t, err)

	_, err = p.Partition(cfg, "cfg")
	require.NoError(t, err)

	after, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)

	p := New(Options{}, nil)
	assert.Len(t, p.RunID(), 12)
}
