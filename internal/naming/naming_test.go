package naming

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNames(t *testing.T) {
	assert.Equal(t, "pya_ab12_caching_EBASMC_concpm10", CacheJob("ab12", "EBASMC", "concpm10"))
	assert.Equal(t, "pya_ab12_caching_EBASMC_*", CacheGlob("ab12", "EBASMC"))
	assert.Equal(t, "pya_ab12_ana_0007_EMEP_allobs", AnalysisJob("ab12", 7, "EMEP", AllNetworks))
	assert.Equal(t, "asm_ab12_01", AssemblyJob("ab12", 1))
	assert.Equal(t, "pya_ab12_*", RunGlob("ab12"))
	assert.Equal(t, "ab12.0042", RunDirSuffix("ab12", 42))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "AeronetSunV3Lev2.daily", Sanitize("AeronetSunV3Lev2.daily"))
	assert.Equal(t, "a-b-c-d_e", Sanitize("a/b:c@d e"))
	assert.Equal(t, "x-y-", Sanitize("x*y?"))
}

func TestGlobsMatchTheirJobs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		run := rapid.StringMatching(`[a-f0-9]{12}`).Draw(t, "run")
		obs := rapid.StringMatching(`[A-Za-z0-9.\-]{1,12}`).Draw(t, "obs")
		variable := rapid.StringMatching(`[a-z0-9]{1,10}`).Draw(t, "var")
		model := rapid.StringMatching(`[A-Za-z0-9.\-]{1,10}`).Draw(t, "model")
		index := rapid.IntRange(1, 9999).Draw(t, "index")

		cache := CacheJob(run, obs, variable)
		if ok, _ := path.Match(CacheGlob(run, obs), cache); !ok {
			t.Fatalf("cache glob does not match %s", cache)
		}
		if ok, _ := path.Match(RunGlob(run), cache); !ok {
			t.Fatalf("run glob does not match %s", cache)
		}

		ana := AnalysisJob(run, index, model, obs)
		if ok, _ := path.Match(RunGlob(run), ana); !ok {
			t.Fatalf("run glob does not match %s", ana)
		}
		if ok, _ := path.Match(CacheGlob(run, obs), ana); ok {
			t.Fatalf("cache glob matches analysis job %s", ana)
		}

		asm := AssemblyJob(run, index)
		if ok, _ := path.Match(RunGlob(run), asm); ok {
			t.Fatalf("assembly job %s waits on itself", asm)
		}
	})
}
