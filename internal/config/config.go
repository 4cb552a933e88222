// Package config loads the YAML configuration a cqdb process is started
// with, mirroring the teacher repo's utils.MktsConfig pattern: an
// unexported string-typed auxiliary struct absorbs the raw YAML, then
// Parse coerces and validates it into the typed Options the rest of the
// module consumes.
package config

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v2"

	cqdb "github.com/kallewoof/cqdb"
	"github.com/kallewoof/cqdb/internal/log"
)

// Options is the parsed, validated configuration for opening a database.
type Options struct {
	RootDirectory string
	Prefix        string
	ClusterSize   uint32
	ReadOnly      bool
	LogLevel      string
}

type aux struct {
	RootDirectory string `yaml:"root_directory"`
	Prefix        string `yaml:"prefix"`
	ClusterSize   string `yaml:"cluster_size"`
	ReadOnly      string `yaml:"read_only"`
	LogLevel      string `yaml:"log_level"`
}

// Parse decodes YAML bytes into Options, defaulting ClusterSize to 1024,
// Prefix to "cluster", and LogLevel to "info" when unset.
func (o *Options) Parse(data []byte) error {
	var a aux
	if err := yaml.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("config: parse: %w", err)
	}

	if a.RootDirectory == "" {
		return fmt.Errorf("config: root_directory is required")
	}
	o.RootDirectory = a.RootDirectory

	o.Prefix = a.Prefix
	if o.Prefix == "" {
		o.Prefix = "cluster"
	}

	o.ClusterSize = 1024
	if a.ClusterSize != "" {
		n, err := strconv.ParseUint(a.ClusterSize, 10, 32)
		if err != nil {
			return fmt.Errorf("config: cluster_size: %w", err)
		}
		o.ClusterSize = uint32(n)
	}

	o.ReadOnly = false
	if a.ReadOnly != "" {
		b, err := strconv.ParseBool(a.ReadOnly)
		if err != nil {
			return fmt.Errorf("config: read_only: %w", err)
		}
		o.ReadOnly = b
	}

	o.LogLevel = a.LogLevel
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}

	return nil
}

// Open opens the database Options describes, driving internal/log's level
// from LogLevel exactly as the teacher's log_level config key drives
// log.SetLevel. This is the only place Options and a *cqdb.Database meet;
// a caller who opens a Database directly (literal arguments to cqdb.Open)
// is responsible for its own log.SetLevel call.
func (o *Options) Open() (*cqdb.Database, error) {
	log.SetLevel(o.LogLevel)
	return cqdb.Open(o.RootDirectory, o.Prefix, o.ClusterSize, o.ReadOnly)
}
