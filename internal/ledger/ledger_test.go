package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/eval-fanout/pkg/jsondoc"
)

func setupLedgerTest(t *testing.T) (*Ledger, string) {
	t.Helper()
	dir := t.TempDir()
	return New("run1", dir, nil), dir
}

func TestMergeRequirement_SubmitSkipExtend(t *testing.T) {
	l, _ := setupLedgerTest(t)

	d, err := l.MergeRequirement("EBASMC", []string{"concpm10", "concpm25", "concpm10"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Submit, d.Action)
	assert.Equal(t, []string{"concpm10", "concpm25"}, d.Variables)
	assert.Empty(t, d.DescriptorFile)

	d, err = l.MergeRequirement("EBASMC", []string{"concpm25"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Skip, d.Action)
	assert.Empty(t, d.Variables)

	d, err = l.MergeRequirement("EBASMC", []string{"concpm25", "vmro3", "concso4"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Submit, d.Action)
	assert.Equal(t, []string{"vmro3", "concso4"}, d.Variables)

	assert.Equal(t, []string{"concpm10", "concpm25", "vmro3", "concso4"}, l.Variables("EBASMC"))
	assert.Equal(t, []string{"EBASMC"}, l.Keys())
}

func TestMergeRequirement_TwoModelsOneNetwork(t *testing.T) {
	l, _ := setupLedgerTest(t)

	first, err := l.MergeRequirement("AeronetSunV3Lev2.daily", []string{"od550aer"}, nil)
	require.NoError(t, err)
	second, err := l.MergeRequirement("AeronetSunV3Lev2.daily", []string{"od550aer"}, nil)
	require.NoError(t, err)

	assert.Equal(t, Submit, first.Action)
	assert.Equal(t, Skip, second.Action)
}

func TestMergeRequirement_KeysKeepFirstSeenOrder(t *testing.T) {
	l, _ := setupLedgerTest(t)
	for _, k := range []string{"b", "a", "b", "c"} {
		_, err := l.MergeRequirement(k, []string{"v"}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b", "a", "c"}, l.Keys())
}

func TestMergeRequirement_DescriptorWrittenOnce(t *testing.T) {
	l, dir := setupLedgerTest(t)
	desc := jsondoc.MustObject("reader_id", "csv_timeseries", "filename_or_obj_or_url", "/data/obs.csv")

	d1, err := l.MergeRequirement("csvobs", []string{"concpm10"}, desc)
	require.NoError(t, err)
	require.NotEmpty(t, d1.DescriptorFile)
	assert.Equal(t, filepath.Join(dir, "pya_run1_csvobs.json"), d1.DescriptorFile)

	info, err := os.Stat(d1.DescriptorFile)
	require.NoError(t, err)

	d2, err := l.MergeRequirement("csvobs", []string{"concpm25"}, desc.Clone())
	require.NoError(t, err)
	assert.Equal(t, d1.DescriptorFile, d2.DescriptorFile)
	assert.Equal(t, []string{"concpm25"}, d2.Variables)

	again, err := os.Stat(d1.DescriptorFile)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())

	// later requirements without a descriptor still learn the file
	d3, err := l.MergeRequirement("csvobs", []string{"concpm10"}, nil)
	require.NoError(t, err)
	assert.Equal(t, d1.DescriptorFile, d3.DescriptorFile)

	back, err := jsondoc.ReadObjectFile(d1.DescriptorFile)
	require.NoError(t, err)
	assert.True(t, jsondoc.EqualOrdered(desc, back))
}

func TestMergeRequirement_ConflictingDescriptor(t *testing.T) {
	l, _ := setupLedgerTest(t)

	_, err := l.MergeRequirement("csvobs", []string{"concpm10"}, jsondoc.MustObject("filename_or_obj_or_url", "/a.csv"))
	require.NoError(t, err)

	_, err = l.MergeRequirement("csvobs", []string{"vmro3"}, jsondoc.MustObject("filename_or_obj_or_url", "/b.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflictingDescriptor)
	assert.Contains(t, err.Error(), "conflicting descriptor for key csvobs")

	// rejected requirement left no trace
	assert.Equal(t, []string{"concpm10"}, l.Variables("csvobs"))
}

func TestMergeRequirement_PreExistingSideFile(t *testing.T) {
	dir := t.TempDir()
	desc := jsondoc.MustObject("reader_id", "nilupmfebas")

	first := New("run1", dir, nil)
	_, err := first.MergeRequirement("ebas", []string{"concpm10"}, desc)
	require.NoError(t, err)

	// a second ledger of the same run reuses an identical file
	second := New("run1", dir, nil)
	d, err := second.MergeRequirement("ebas", []string{"concpm10"}, desc)
	require.NoError(t, err)
	assert.Equal(t, Submit, d.Action)

	third := New("run1", dir, nil)
	_, err = third.MergeRequirement("ebas", []string{"concpm10"}, jsondoc.MustObject("reader_id", "other"))
	assert.ErrorIs(t, err, ErrConflictingDescriptor)
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "submit", Submit.String())
	assert.Equal(t, "skip", Skip.String())
}
