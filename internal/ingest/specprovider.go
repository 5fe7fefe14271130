// Copyright (c) 2015 Western Digital Corporation or its affiliates.  All rights reserved.
// SPDX-License-Identifier: MIT

package ingest

import (
	"fmt"

	"github.com/caoash/nebula/internal/block"
	"github.com/caoash/nebula/internal/meta"
)

// TableConfig is one table's entry from the cluster YAML configuration:
// what to ingest, at what granularity, and for how long to keep it.
type TableConfig struct {
	Name             string
	Pattern          string // domain locator template, e.g. "s3://bucket/{date}/{hour}"
	Schema           *block.Schema
	Fields           []string
	TimeWindowStart  uint64 // unix seconds
	TimeWindowEnd    uint64 // unix seconds; 0 means "up to now"
	RetentionSeconds uint64
}

// SpecProvider deterministically enumerates the ingestion specs a
// TableConfig implies for the window [TimeWindowStart, TimeWindowEnd].
type SpecProvider struct{}

// Generate walks cfg's time window at its pattern's granularity and returns
// one Spec per watermark. now substitutes for TimeWindowEnd when it is 0,
// and bounds the final (possibly partial) window.
func (SpecProvider) Generate(version string, cfg TableConfig, now uint64) ([]*meta.Spec, error) {
	granularity := meta.Extract(cfg.Pattern)
	if granularity == meta.Invalid {
		return nil, fmt.Errorf("ingest: table %q has an invalid macro pattern %q", cfg.Name, cfg.Pattern)
	}

	end := cfg.TimeWindowEnd
	if end == 0 {
		end = now
	}
	if cfg.TimeWindowStart > end {
		return nil, fmt.Errorf("ingest: table %q time window start %d is after end %d", cfg.Name, cfg.TimeWindowStart, end)
	}

	step := granularity.Seconds()
	if step == 0 {
		step = end - cfg.TimeWindowStart + 1
	}

	var specs []*meta.Spec
	for watermark := cfg.TimeWindowStart; watermark <= end; watermark += step {
		locator := meta.Materialize(granularity, cfg.Pattern, int64(watermark))
		windowEnd := watermark + step - 1
		if windowEnd > end {
			windowEnd = end
		}
		id := meta.SpecID(cfg.Name, version, map[string]string{"watermark": fmt.Sprint(watermark)}, locator)
		specs = append(specs, &meta.Spec{
			ID:            id,
			Version:       version,
			Table:         cfg.Name,
			DomainLocator: locator,
			TimeStart:     watermark,
			TimeEnd:       windowEnd,
			Affinity:      meta.NoAffinity,
			State:         meta.SpecNew,
		})
	}
	return specs, nil
}
