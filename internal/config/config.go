// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config holds the single explicit configuration record for the forecaster,
// loaded from a JSON file and layered with TTSAM_*-prefixed environment overrides, in
// the teacher's flat Keys-struct-plus-JSON-config-file style.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Config enumerates every tunable named in the design notes: window/shape parameters,
// trigger predicate thresholds, event lifecycle timers, filter corners, and the
// external endpoints the ambient stack needs (NATS, sqlite event index, report log
// root, debug HTTP listen address).
type Config struct {
	WindowSeconds        int     `json:"window_seconds"`
	NStationsMax         int     `json:"n_stations_max"`
	TickIntervalSeconds  float64 `json:"tick_interval"`
	InitialDelaySeconds  float64 `json:"initial_delay"`
	IntensityCutoff      float64 `json:"intensity_cutoff"`
	AlarmMinIntensity    string  `json:"alarm_min_intensity"`

	TriggerMinStations    int     `json:"trigger_min_stations"`
	TriggerWindowSeconds  float64 `json:"trigger_window_seconds"`
	TriggerSpatialKm      float64 `json:"trigger_spatial_km"`
	EventLingerSeconds    float64 `json:"event_linger_seconds"`
	EventDrainSeconds     float64 `json:"event_drain_seconds"`
	EpsilonPickSeconds    float64 `json:"epsilon_pick_seconds"`

	PredictTimeoutSeconds float64 `json:"predict_timeout_seconds"`

	BandpassLowHz  float64 `json:"bandpass_low_hz"`
	BandpassHighHz float64 `json:"bandpass_high_hz"`
	BandpassOrder  int     `json:"bandpass_order"`

	ReportLogDir string `json:"report_log_dir"`
	PickLogDir   string `json:"pick_log_dir"`
	EventIndexDB string `json:"event_index_db"`

	NatsAddress        string `json:"nats_address"`
	NatsReportSubject  string `json:"nats_report_subject"`
	NatsPickSubject    string `json:"nats_pick_subject"`
	NatsWaveformSubject string `json:"nats_waveform_subject"`

	DebugListenAddr string `json:"debug_listen_addr"`

	StationCatalogCSV string `json:"station_catalog_csv"`
	TargetCatalogCSV  string `json:"target_catalog_csv"`
	Vs30GridCSV       string `json:"vs30_grid_csv"`
}

// Default returns the configuration with every default value from spec.md §6/§9.
func Default() Config {
	return Config{
		WindowSeconds:       30,
		NStationsMax:        25,
		TickIntervalSeconds: 1.0,
		InitialDelaySeconds: 3.0,
		IntensityCutoff:     0.5,
		AlarmMinIntensity:   "4",

		TriggerMinStations:   3,
		TriggerWindowSeconds: 15,
		TriggerSpatialKm:     120,
		EventLingerSeconds:   20,
		EventDrainSeconds:    30,
		EpsilonPickSeconds:   0.5,

		PredictTimeoutSeconds: 2.5,

		BandpassLowHz:  0.075,
		BandpassHighHz: 10.0,
		BandpassOrder:  4,

		ReportLogDir: "logs/report",
		PickLogDir:   "logs/pick",
		EventIndexDB: "logs/events.db",

		NatsAddress:         "",
		NatsReportSubject:   "ttsam.report",
		NatsPickSubject:     "ttsam.pick",
		NatsWaveformSubject: "ttsam.waveform",

		DebugListenAddr: ":8090",
	}
}

// Load reads a JSON config file (if present) on top of Default(), validates it, then
// applies TTSAM_*-prefixed environment overrides. A missing file is not an error; a
// malformed one is fatal, matching the teacher's config.Init startup-failure posture.
func Load(path string) Config {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				cclog.Fatalf("config: reading %s: %s", path, err.Error())
			}
		} else {
			if err := Validate(raw); err != nil {
				cclog.Fatalf("config: validate %s: %s", path, err.Error())
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&cfg); err != nil {
				cclog.Fatalf("config: decode %s: %s", path, err.Error())
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("TTSAM_WINDOW_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WindowSeconds = n
		}
	}
	if v, ok := os.LookupEnv("TTSAM_N_STATIONS_MAX"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NStationsMax = n
		}
	}
	if v, ok := os.LookupEnv("TTSAM_TICK_INTERVAL"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TickIntervalSeconds = f
		}
	}
	if v, ok := os.LookupEnv("TTSAM_ALARM_MIN_INTENSITY"); ok {
		cfg.AlarmMinIntensity = v
	}
	if v, ok := os.LookupEnv("TTSAM_INTENSITY_CUTOFF"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.IntensityCutoff = f
		}
	}
}
