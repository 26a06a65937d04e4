package config

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigRoundTripProperty: deserialize(serialize(config)) == config
func TestConfigRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("config round-trip preserves data", prop.ForAll(
		func(cfg *Config) bool {
			data, err := cfg.Serialize()
			if err != nil {
				return false
			}
			parsed, err := ParseConfig(data)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(cfg, parsed)
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

func genConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.AlphaString(),
		gen.Bool(),
		gen.IntRange(1, 512),
		gen.IntRange(1, 512),
		gen.IntRange(1, 64),
		gen.SliceOfN(3, gen.AlphaString()),
		gen.IntRange(1, 32),
	).Map(func(values []interface{}) *Config {
		cfg := DefaultConfig()
		cfg.Scheduler.Queue = values[0].(string) + ".q"
		cfg.Scheduler.Localhost = values[1].(bool)
		cfg.Resources.CacheRAMGB = values[2].(int)
		cfg.Resources.AnalysisRAMGB = values[3].(int)
		cfg.Resources.CPUs = values[4].(int)
		cfg.Environment.Modules = values[5].([]string)
		cfg.Assembly.Workers = values[6].(int)
		return cfg
	})
}
