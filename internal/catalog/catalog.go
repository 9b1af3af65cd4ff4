// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package catalog loads the static reference data the forecaster needs alongside the
// live waveform/pick streams: the station metadata table, the fixed target list, and a
// Vs30 grid used to fill in site amplification for stations the metadata table leaves
// blank. All three are flat CSVs, read once at startup, grounded on the teacher's
// config.Init pattern of loading small reference datasets from disk before the main
// server loop starts rather than lazily on first use.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// Catalog holds the in-memory station/target/Vs30-grid reference data.
type Catalog struct {
	mu       sync.RWMutex
	stations map[string]seis.StationMeta
	targets  []seis.Target
	counties map[string]string
	vs30Grid []vs30Cell
}

type vs30Cell struct {
	lat, lon, vs30 float64
}

// New returns an empty Catalog, useful for tests that populate it directly.
func New() *Catalog {
	return &Catalog{stations: make(map[string]seis.StationMeta), counties: make(map[string]string)}
}

// Load reads the station, target, and (optional) Vs30-grid CSVs at the given paths. A
// blank path skips that file. Vs30-grid loading is best-effort: stations missing Vs30 fall
// back to the nearest grid cell's value if the grid was loaded.
func Load(stationCSV, targetCSV, vs30CSV string) (*Catalog, error) {
	c := New()

	if stationCSV != "" {
		if err := c.loadStations(stationCSV); err != nil {
			return nil, fmt.Errorf("catalog: stations: %w", err)
		}
	}
	if targetCSV != "" {
		if err := c.loadTargets(targetCSV); err != nil {
			return nil, fmt.Errorf("catalog: targets: %w", err)
		}
	}
	if vs30CSV != "" {
		if err := c.loadVs30Grid(vs30CSV); err != nil {
			return nil, fmt.Errorf("catalog: vs30 grid: %w", err)
		}
	}

	c.fillMissingVs30()
	return c, nil
}

// station_id,latitude,longitude,elevation_m,network_code,location_code,vs30,site_class
func (c *Catalog) loadStations(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range rows {
		m := seis.StationMeta{
			StationID:    col(row, "station_id"),
			NetworkCode:  col(row, "network_code"),
			LocationCode: col(row, "location_code"),
		}
		m.Latitude, _ = strconv.ParseFloat(col(row, "latitude"), 64)
		m.Longitude, _ = strconv.ParseFloat(col(row, "longitude"), 64)
		m.ElevationM, _ = strconv.ParseFloat(col(row, "elevation_m"), 64)
		if v := col(row, "vs30"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				m.Vs30 = &f
			}
		}
		if s := col(row, "site_class"); s != "" {
			m.SiteClass = &s
		}
		c.stations[m.StationID] = m
	}
	return nil
}

// target_name,latitude,longitude,vs30,county (county is optional, used only for the
// alarm_county rollup in the report).
func (c *Catalog) loadTargets(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range rows {
		t := seis.Target{Name: col(row, "target_name")}
		t.Latitude, _ = strconv.ParseFloat(col(row, "latitude"), 64)
		t.Longitude, _ = strconv.ParseFloat(col(row, "longitude"), 64)
		t.Vs30, _ = strconv.ParseFloat(col(row, "vs30"), 64)
		c.targets = append(c.targets, t)
		if county := col(row, "county"); county != "" {
			c.counties[t.Name] = county
		}
	}
	return nil
}

// CountyFor returns the county a target belongs to, if the target CSV named one.
func (c *Catalog) CountyFor(targetName string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	county, ok := c.counties[targetName]
	return county, ok
}

// SetCounty associates targetName with county, primarily for tests.
func (c *Catalog) SetCounty(targetName, county string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counties[targetName] = county
}

// latitude,longitude,vs30
func (c *Catalog) loadVs30Grid(path string) error {
	rows, err := readCSV(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range rows {
		var cell vs30Cell
		cell.lat, _ = strconv.ParseFloat(col(row, "latitude"), 64)
		cell.lon, _ = strconv.ParseFloat(col(row, "longitude"), 64)
		cell.vs30, _ = strconv.ParseFloat(col(row, "vs30"), 64)
		c.vs30Grid = append(c.vs30Grid, cell)
	}
	return nil
}

func (c *Catalog) fillMissingVs30() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.vs30Grid) == 0 {
		return
	}
	for id, m := range c.stations {
		if m.Vs30 != nil {
			continue
		}
		best := c.vs30Grid[0]
		bestDist := math2Dist(m.Latitude, m.Longitude, best.lat, best.lon)
		for _, cell := range c.vs30Grid[1:] {
			d := math2Dist(m.Latitude, m.Longitude, cell.lat, cell.lon)
			if d < bestDist {
				bestDist = d
				best = cell
			}
		}
		v := best.vs30
		m.Vs30 = &v
		c.stations[id] = m
	}
}

func math2Dist(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := lat1 - lat2
	dLon := lon1 - lon2
	return dLat*dLat + dLon*dLon // squared Euclidean is enough to rank grid cells
}

// Lookup implements pickagg.StationLocator.
func (c *Catalog) Lookup(stationID string) (seis.StationMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.stations[stationID]
	return m, ok
}

// Stations returns every known station, in no particular order.
func (c *Catalog) Stations() []seis.StationMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]seis.StationMeta, 0, len(c.stations))
	for _, m := range c.stations {
		out = append(out, m)
	}
	return out
}

// Targets returns the configured target list in a fixed, deterministic order (the
// order they were read from the CSV).
func (c *Catalog) Targets() []seis.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]seis.Target(nil), c.targets...)
}

// AddStation inserts or replaces one station's metadata, primarily for tests.
func (c *Catalog) AddStation(m seis.StationMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stations[m.StationID] = m
}

// AddTarget appends one target, primarily for tests.
func (c *Catalog) AddTarget(t seis.Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, t)
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func col(row map[string]string, key string) string {
	return row[key]
}
