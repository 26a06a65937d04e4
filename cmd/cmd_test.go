package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/eval-fanout/internal/evalcfg"
	"yqhp/eval-fanout/internal/reorder"
)

const infoConfig = `{
	"proj_id": "emep",
	"exp_id": "trends",
	"json_basedir": "/data/aeroval",
	"coldata_basedir": "/data/coldata",
	"obs_cfg": {
		"AERONET": {"obs_id": "AeronetSunV3Lev2.daily", "obs_vars": ["od550aer", "ang4487aer"]},
		"AERONET-AOD": {"obs_id": "AeronetSunV3Lev2.daily", "obs_vars": "od550aer"},
		"EBAS": {"obs_id": "EBASMC", "obs_vars": ["concpm10"]},
		"SUPER": {"obs_id": ["AERONET", "EBAS"], "obs_vars": ["od550aer"], "is_superobs": true}
	},
	"model_cfg": {"EMEP": {}}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCacheInfo(t *testing.T) {
	cfg, err := evalcfg.Parse([]byte(infoConfig), "json")
	require.NoError(t, err)

	assert.Equal(t, []CacheEntry{
		{ObsID: "AeronetSunV3Lev2.daily", Variables: []string{"od550aer", "ang4487aer"}},
		{ObsID: "EBASMC", Variables: []string{"concpm10"}},
	}, cacheInfo(cfg))
}

func TestInfoCommand(t *testing.T) {
	file := writeFile(t, "cfg_emep.json", infoConfig)

	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"info", file})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "AeronetSunV3Lev2.daily")
	assert.Contains(t, out.String(), "od550aer,ang4487aer")
	assert.NotContains(t, out.String(), "SUPER")
}

func TestParseTargets(t *testing.T) {
	all, err := parseTargets(nil)
	require.NoError(t, err)
	assert.Equal(t, reorder.AllTargets, all)

	some, err := parseTargets([]string{"menu", "hmts"})
	require.NoError(t, err)
	assert.Equal(t, reorder.Targets{Menu: true, HeatmapTS: true}, some)

	_, err = parseTargets([]string{"scatter"})
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"plan", "assemble", "reorder", "info"} {
		assert.True(t, names[want], want)
	}
}
