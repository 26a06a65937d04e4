package evalcfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/eval-fanout/pkg/jsondoc"
)

const sampleJSON = `{
    "proj_id": "emep",
    "exp_id": "2021-reporting",
    "json_basedir": "/data/aeroval",
    "coldata_basedir": "/data/coldata",
    "obs_cfg": {
        "AERONET-Sun": {"obs_id": "AeronetSunV3Lev2.daily", "obs_vars": ["od550aer", "ang4487aer"]},
        "EBAS": {"obs_id": "EBASMC", "obs_vars": "concpm10", "pyaro_config": {"name": "ebas", "reader_id": "nilupmfebas"}},
        "Combined": {"obs_id": ["AERONET-Sun", "EBAS"], "obs_vars": ["od550aer"], "is_superobs": true}
    },
    "model_cfg": {
        "EMEP": {"model_id": "EMEP.cams"},
        "IFS": {"model_id": "IFS-OSUITE"}
    },
    "plot_types": {"EMEP": ["overlay"], "IFS": ["scat"]},
    "var_order_menu": ["od550aer", "concpm10"],
    "model_order_menu": ["IFS"],
    "unknown_option": {"kept": [1, 2, 3]}
}`

func setupConfigTest(t *testing.T) *Config {
	t.Helper()
	cfg, err := Parse([]byte(sampleJSON), "json")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestConfig_Accessors(t *testing.T) {
	cfg := setupConfigTest(t)

	assert.Equal(t, "emep", cfg.ProjectID())
	assert.Equal(t, "2021-reporting", cfg.ExperimentID())
	assert.Equal(t, "/data/aeroval", cfg.JSONBaseDir())
	assert.Equal(t, "/data/coldata", cfg.ColdataBaseDir())
	assert.Equal(t, "", cfg.IOAuxFile())
	assert.Equal(t, []string{"EMEP", "IFS"}, cfg.Models())
	assert.Equal(t, []string{"od550aer", "concpm10"}, cfg.VariableOrder())
	assert.Equal(t, []string{"IFS", "EMEP"}, cfg.ModelOrder())
	assert.Equal(t, []string{"AERONET-Sun", "EBAS", "Combined"}, cfg.NetworkKeys())
}

func TestConfig_Networks(t *testing.T) {
	cfg := setupConfigTest(t)

	nets := cfg.Networks()
	require.Len(t, nets, 3)

	assert.Equal(t, "AeronetSunV3Lev2.daily", nets[0].ObsID)
	assert.Equal(t, []string{"od550aer", "ang4487aer"}, nets[0].Variables)
	assert.Nil(t, nets[0].DataSource)

	assert.Equal(t, []string{"concpm10"}, nets[1].Variables)
	require.NotNil(t, nets[1].DataSource)
	name, _ := nets[1].DataSource.GetString("name")
	assert.Equal(t, "ebas", name)

	assert.True(t, nets[2].SuperObs)
	assert.Empty(t, nets[2].ObsID)

	assert.True(t, cfg.HasSuperObs())
	cache := cfg.CacheNetworks()
	require.Len(t, cache, 2)
	assert.Equal(t, "EBAS", cache[1].Key)

	n, ok := cfg.Network("EBAS")
	assert.True(t, ok)
	assert.Equal(t, "EBASMC", n.ObsID)
	_, ok = cfg.Network("missing")
	assert.False(t, ok)
}

func TestConfig_ModelOrderFallsBackToModels(t *testing.T) {
	cfg := setupConfigTest(t)
	cfg.Document().Delete(KeyModelOrder)
	assert.Equal(t, []string{"EMEP", "IFS"}, cfg.ModelOrder())
}

func TestConfig_ModelOrderDeduplicates(t *testing.T) {
	cfg := setupConfigTest(t)
	cfg.Document().Set(KeyModelOrder, []any{"IFS", "IFS", "MONARCH"})
	assert.Equal(t, []string{"IFS", "MONARCH", "EMEP"}, cfg.ModelOrder())
}

func TestConfig_RestrictKeepsOtherKeys(t *testing.T) {
	cfg := setupConfigTest(t)
	sub := cfg.Clone()

	sub.RestrictModel("IFS")
	sub.RestrictNetworks("EBAS")

	assert.Equal(t, []string{"IFS"}, sub.Models())
	assert.Equal(t, []string{"EBAS"}, sub.NetworkKeys())
	plots, _ := sub.Document().GetObject(KeyPlotTypes)
	assert.Equal(t, []string{"IFS"}, plots.Keys())

	unknown, ok := sub.Document().Get("unknown_option")
	require.True(t, ok)
	want, _ := cfg.Document().Get("unknown_option")
	assert.True(t, jsondoc.EqualOrdered(want, unknown))

	// the source configuration is untouched
	assert.Equal(t, []string{"EMEP", "IFS"}, cfg.Models())
	assert.Len(t, cfg.NetworkKeys(), 3)
}

func TestConfig_RestrictWithoutPlotTypes(t *testing.T) {
	cfg := setupConfigTest(t)
	cfg.Document().Delete(KeyPlotTypes)

	cfg.RestrictModel("EMEP")
	assert.False(t, cfg.Document().Has(KeyPlotTypes))
	assert.Equal(t, []string{"EMEP"}, cfg.Models())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"proj_id": "",
		"obs_cfg": {
			"A": {"obs_vars": []},
			"B": "not a mapping",
			"C": {"obs_id": "c", "obs_vars": "x", "is_superobs": "yes", "pyaro_config": 3}
		},
		"var_order_menu": [1, 2],
		"plot_types": []
	}`), "json")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrMissingKey)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"proj_id",
		"exp_id",
		"json_basedir",
		"coldata_basedir",
		"model_cfg",
		"obs_cfg.A.obs_id",
		"obs_cfg.A.obs_vars",
		"obs_cfg.B",
		"obs_cfg.C.is_superobs",
		"obs_cfg.C.pyaro_config",
		"var_order_menu",
		"plot_types",
	}, fields)
	assert.Contains(t, err.Error(), "obs_cfg.B: must be a mapping")
}

func TestValidate_WrongTypes(t *testing.T) {
	cfg := setupConfigTest(t)
	cfg.Document().Set(KeyModels, []any{"EMEP"})
	cfg.Document().Set(KeyObservations, jsondoc.NewObject())

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.NotErrorIs(t, err, ErrMissingKey)
	assert.Contains(t, err.Error(), "model_cfg: must be a mapping")
	assert.Contains(t, err.Error(), "at least one observation network")
}

func TestLoad_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "cfg_emep.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o644))

	yamlPath := filepath.Join(dir, "cfg_emep.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
proj_id: emep
exp_id: 2021-reporting
json_basedir: /data/aeroval
coldata_basedir: /data/coldata
obs_cfg:
  EBAS:
    obs_id: EBASMC
    obs_vars: concpm10
model_cfg:
  IFS: {model_id: IFS-OSUITE}
  EMEP: {model_id: EMEP.cams}
`), 0o644))

	fromJSON, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "emep", fromJSON.ProjectID())

	fromYAML, err := Load(yamlPath)
	require.NoError(t, err)
	require.NoError(t, fromYAML.Validate())
	assert.Equal(t, []string{"IFS", "EMEP"}, fromYAML.Models())
	assert.Equal(t, "2021-reporting", fromYAML.ExperimentID())

	_, err = Load(filepath.Join(dir, "cfg.py"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, "cfg_emep", Stem(yamlPath))
	assert.True(t, SupportedFile("a/b.YML"))
}

func TestParse_TopLevelMustBeMapping(t *testing.T) {
	_, err := Parse([]byte(`[1, 2]`), "json")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte(`{}`), "toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestConfig_WriteFileRoundTrip(t *testing.T) {
	cfg := setupConfigTest(t)
	path := filepath.Join(t.TempDir(), "out.json")

	cfg.SetIOAuxFile("/opt/gridded_io_aux.py")
	require.NoError(t, cfg.WriteFile(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.True(t, jsondoc.EqualOrdered(cfg.Document(), back.Document()))
	assert.Equal(t, "/opt/gridded_io_aux.py", back.IOAuxFile())
}
