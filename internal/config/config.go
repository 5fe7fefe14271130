// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads Nebula's cluster and table configuration from the
// YAML document referenced by the $NCONF environment variable, per spec's
// "Persisted state" section.
package config

import (
	"fmt"
	"io/ioutil"
	"time"

	validator "gopkg.in/validator.v2"
	yaml "gopkg.in/yaml.v2"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/ingest"
	"github.com/caoash/nebula/pkg/slices"
)

// FieldConfig is one schema field as written in YAML: a name and a Kind
// name (see block.ParseKind), plus the item/key/value kind names needed
// when Kind is "list" or "map".
type FieldConfig struct {
	Name string `yaml:"name" validate:"nonzero"`
	Kind string `yaml:"kind" validate:"nonzero"`
	Item string `yaml:"item,omitempty"`
	Key  string `yaml:"key,omitempty"`
	Val  string `yaml:"val,omitempty"`
}

// TableConfig is one table's YAML entry: its schema, ingestion pattern,
// projected fields, time window, and retention.
type TableConfig struct {
	Name             string        `yaml:"name" validate:"nonzero"`
	Pattern          string        `yaml:"pattern" validate:"nonzero"`
	Fields           []FieldConfig `yaml:"schema" validate:"min=1"`
	Project          []string      `yaml:"fields" validate:"min=1"`
	TimeWindowStart  int64         `yaml:"time_window_start"`
	TimeWindowEnd    int64         `yaml:"time_window_end"`
	RetentionSeconds int64         `yaml:"retention_seconds" validate:"min=1"`
}

// Intervals controls the coordinator's three periodic control loops.
type Intervals struct {
	Refresh time.Duration `yaml:"refresh" validate:"nonzero"`
	Expire  time.Duration `yaml:"expire" validate:"nonzero"`
	Assign  time.Duration `yaml:"assign" validate:"nonzero"`
}

// Config is the whole $NCONF document: cluster membership and every
// table's ingestion configuration.
type Config struct {
	Version   string        `yaml:"version"`
	Nodes     []string      `yaml:"nodes" validate:"min=1"`
	Tables    []TableConfig `yaml:"tables" validate:"min=1"`
	Intervals Intervals     `yaml:"intervals"`
	Workers   int           `yaml:"workers"`
}

// Load reads and validates the YAML document at path.
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &cfg, nil
}

// Schema builds the block.Schema this table config describes.
func (t TableConfig) Schema() (*block.Schema, error) {
	fields := make([]block.Field, len(t.Fields))
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		kind, err := block.ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("config: table %q field %q: %w", t.Name, f.Name, err)
		}
		field := block.Field{Name: f.Name, Kind: kind}
		if kind == block.List {
			if field.ItemKind, err = block.ParseKind(f.Item); err != nil {
				return nil, fmt.Errorf("config: table %q field %q item kind: %w", t.Name, f.Name, err)
			}
		}
		if kind == block.Map {
			if field.KeyKind, err = block.ParseKind(f.Key); err != nil {
				return nil, fmt.Errorf("config: table %q field %q key kind: %w", t.Name, f.Name, err)
			}
			if field.ValKind, err = block.ParseKind(f.Val); err != nil {
				return nil, fmt.Errorf("config: table %q field %q val kind: %w", t.Name, f.Name, err)
			}
		}
		fields[i] = field
		names[i] = f.Name
	}
	for _, projected := range t.Project {
		if !slices.ContainsString(names, projected) {
			return nil, fmt.Errorf("config: table %q projects field %q, which is not in its schema", t.Name, projected)
		}
	}
	return block.NewSchema(fields), nil
}

// IngestTableConfig converts this YAML table entry into the
// ingest.TableConfig SpecProvider consumes.
func (t TableConfig) IngestTableConfig() (ingest.TableConfig, error) {
	schema, err := t.Schema()
	if err != nil {
		return ingest.TableConfig{}, err
	}
	if t.TimeWindowStart < 0 || t.TimeWindowEnd < 0 {
		return ingest.TableConfig{}, fmt.Errorf("config: table %q has a negative time window bound", t.Name)
	}
	return ingest.TableConfig{
		Name:             t.Name,
		Pattern:          t.Pattern,
		Schema:           schema,
		Fields:           t.Project,
		TimeWindowStart:  uint64(t.TimeWindowStart),
		TimeWindowEnd:    uint64(t.TimeWindowEnd),
		RetentionSeconds: uint64(t.RetentionSeconds),
	}, nil
}

// IngestTableConfigs converts every table entry, stopping at the first
// error.
func (c *Config) IngestTableConfigs() ([]ingest.TableConfig, error) {
	out := make([]ingest.TableConfig, 0, len(c.Tables))
	for _, t := range c.Tables {
		itc, err := t.IngestTableConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, itc)
	}
	return out, nil
}
