// Package evalcfg wraps one evaluation configuration. The document is kept
// as an ordered JSON object so that every key, including the ones this tool
// does not understand, survives a load/modify/write cycle unchanged.
package evalcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/duke-git/lancet/v2/slice"

	"yqhp/eval-fanout/pkg/jsondoc"
)

// Recognised top-level keys.
const (
	KeyProjectID      = "proj_id"
	KeyExperimentID   = "exp_id"
	KeyObservations   = "obs_cfg"
	KeyModels         = "model_cfg"
	KeyPlotTypes      = "plot_types"
	KeyVariableOrder  = "var_order_menu"
	KeyModelOrder     = "model_order_menu"
	KeyJSONBaseDir    = "json_basedir"
	KeyColdataBaseDir = "coldata_basedir"
	KeyIOAuxFile      = "io_aux_file"
)

// Keys inside one observation network entry.
const (
	KeyObsID      = "obs_id"
	KeyObsVars    = "obs_vars"
	KeySuperObs   = "is_superobs"
	KeyDataSource = "pyaro_config"
)

// Config is one evaluation configuration.
type Config struct {
	doc *jsondoc.Object
}

// New wraps doc. The document is used as is; call Validate before relying
// on the typed accessors.
func New(doc *jsondoc.Object) *Config {
	if doc == nil {
		doc = jsondoc.NewObject()
	}
	return &Config{doc: doc}
}

// Parse decodes a configuration from JSON or YAML, chosen by format
// ("json", "yaml" or "yml").
func Parse(data []byte, format string) (*Config, error) {
	var (
		v   any
		err error
	)
	switch strings.ToLower(format) {
	case "json":
		v, err = jsondoc.Parse(data)
	case "yaml", "yml":
		v, err = jsondoc.FromYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	doc, ok := v.(*jsondoc.Object)
	if !ok {
		return nil, fmt.Errorf("%w: configuration must be a mapping", ErrInvalidConfig)
	}
	return New(doc), nil
}

// Load reads a configuration file. The format follows the file extension.
func Load(path string) (*Config, error) {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if !SupportedFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SupportedFile reports whether path has an extension Load understands.
func SupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Document returns the underlying document. Changes are visible through c.
func (c *Config) Document() *jsondoc.Object {
	return c.doc
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	return &Config{doc: c.doc.Clone()}
}

// Marshal encodes the configuration the way it is written to disk.
func (c *Config) Marshal() ([]byte, error) {
	return jsondoc.Marshal(c.doc)
}

// WriteFile writes the configuration as indented JSON.
func (c *Config) WriteFile(path string) error {
	return jsondoc.WriteFile(path, c.doc)
}

func (c *Config) ProjectID() string {
	s, _ := c.doc.GetString(KeyProjectID)
	return s
}

func (c *Config) ExperimentID() string {
	s, _ := c.doc.GetString(KeyExperimentID)
	return s
}

func (c *Config) JSONBaseDir() string {
	s, _ := c.doc.GetString(KeyJSONBaseDir)
	return s
}

func (c *Config) ColdataBaseDir() string {
	s, _ := c.doc.GetString(KeyColdataBaseDir)
	return s
}

func (c *Config) IOAuxFile() string {
	s, _ := c.doc.GetString(KeyIOAuxFile)
	return s
}

func (c *Config) SetJSONBaseDir(dir string) { c.doc.Set(KeyJSONBaseDir, dir) }
func (c *Config) SetColdataBaseDir(dir string) { c.doc.Set(KeyColdataBaseDir, dir) }
func (c *Config) SetIOAuxFile(path string) { c.doc.Set(KeyIOAuxFile, path) }

// Models returns the model names in configuration order.
func (c *Config) Models() []string {
	models, _ := c.doc.GetObject(KeyModels)
	return models.Keys()
}

// VariableOrder returns the canonical variable display order. Missing means
// no preference.
func (c *Config) VariableOrder() []string {
	order, _ := c.doc.GetStrings(KeyVariableOrder)
	return order
}

// ModelOrder returns the canonical model display order: model_order_menu
// first, then every configured model it does not mention, in configuration
// order.
func (c *Config) ModelOrder() []string {
	order, _ := c.doc.GetStrings(KeyModelOrder)
	return slice.Union(order, c.Models())
}

// RestrictModel keeps only model in the model configuration and, when
// present, in the plot type table.
func (c *Config) RestrictModel(model string) {
	if models, ok := c.doc.GetObject(KeyModels); ok {
		models.Retain(model)
	}
	if plots, ok := c.doc.GetObject(KeyPlotTypes); ok {
		plots.Retain(model)
	}
}

// RestrictNetworks keeps only the given observation network keys.
func (c *Config) RestrictNetworks(keys ...string) {
	if obs, ok := c.doc.GetObject(KeyObservations); ok {
		obs.Retain(keys...)
	}
}
