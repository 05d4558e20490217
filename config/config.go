// Package config is lockdownctl's optional config-file layer: a small
// yaml.v2-tagged struct loaded via fileutil.LoadConfigWithSchema,
// mirroring the yaml-tag/copier pattern xpki/authority/config.go uses
// for CA configuration. Values loaded here become CLI flag *defaults*;
// a flag passed explicitly on the command line still wins.
package config

import (
	"strings"

	"github.com/go-phorce/lockdown/internal/fileutil"
	"github.com/jinzhu/copier"
	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config holds the subset of lockdownctl's flags worth pre-seeding from
// a file, e.g. a per-host ~/.lockdown/config.yaml a fleet of scripts
// shares instead of repeating --addr/--store on every invocation.
type Config struct {
	Addr        string `json:"addr,omitempty" yaml:"addr,omitempty"`
	DialTimeout string `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty"`
	StoreDir    string `json:"store_dir,omitempty" yaml:"store_dir,omitempty"`
	Label       string `json:"label,omitempty" yaml:"label,omitempty"`
	LogFile     string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	AuditLogDir string `json:"audit_log_dir,omitempty" yaml:"audit_log_dir,omitempty"`
}

// Load reads and parses a YAML config from a plain path, or from
// file://path / env://VAR per fileutil.LoadConfigWithSchema.
func Load(location string) (*Config, error) {
	if !strings.HasPrefix(location, fileutil.FileSource) && !strings.HasPrefix(location, fileutil.EnvSource) {
		location = fileutil.FileSource + location
	}
	raw, err := fileutil.LoadConfigWithSchema(location)
	if err != nil {
		return nil, errors.Annotate(err, "resolve config location")
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, errors.Annotate(err, "parse config")
	}
	return &cfg, nil
}

// Clone deep-copies c, so a caller can apply command-line overrides to
// the copy without mutating the config that was loaded from disk.
func (c *Config) Clone() *Config {
	clone := &Config{}
	_ = copier.Copy(clone, c)
	return clone
}
