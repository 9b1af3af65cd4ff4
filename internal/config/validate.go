// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema rejects the config mistakes that would otherwise only surface on the
// first waveform packet or the first trigger: an unsupported sample-rate-adjacent
// window size, a non-positive station cap, an alarm threshold outside the closed
// intensity-label set.
const configSchema = `{
	"type": "object",
	"properties": {
		"window_seconds": {"type": "integer", "minimum": 1},
		"n_stations_max": {"type": "integer", "minimum": 1},
		"tick_interval": {"type": "number", "exclusiveMinimum": 0},
		"initial_delay": {"type": "number", "minimum": 0},
		"intensity_cutoff": {"type": "number", "minimum": 0, "maximum": 1},
		"alarm_min_intensity": {"enum": ["0","1","2","3","4","5-","5+","6-","6+","7"]},
		"trigger_min_stations": {"type": "integer", "minimum": 1},
		"trigger_window_seconds": {"type": "number", "exclusiveMinimum": 0},
		"trigger_spatial_km": {"type": "number", "exclusiveMinimum": 0},
		"event_linger_seconds": {"type": "number", "exclusiveMinimum": 0},
		"event_drain_seconds": {"type": "number", "exclusiveMinimum": 0},
		"predict_timeout_seconds": {"type": "number", "exclusiveMinimum": 0},
		"bandpass_low_hz": {"type": "number", "exclusiveMinimum": 0},
		"bandpass_high_hz": {"type": "number", "exclusiveMinimum": 0},
		"bandpass_order": {"type": "integer", "minimum": 1}
	}
}`

// Validate checks a raw config JSON document against configSchema before it is ever
// decoded into a Config, the way the teacher validates config.json against an embedded
// JSON schema before populating schema.ProgramConfig.
func Validate(instance json.RawMessage) error {
	sch, err := jsonschema.CompileString("ttsam-config.json", configSchema)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return err
	}

	return sch.Validate(v)
}
