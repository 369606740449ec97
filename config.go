// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package ped

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every numeric constant from spec.md §6. It never carries
// host/port/MID/TID — that sourcing remains the host's responsibility
// (non-goal, unchanged).
type Config struct {
	MaxRetryAttempts           int
	MaxConnectionRetryAttempts int
	BaseBackoffDelay           time.Duration
	MaxBackoffDelay            time.Duration
	IdleGateSleep              time.Duration
	PollInterval               time.Duration
	BaseTimeout                time.Duration
	ReportTimeout              time.Duration
	ExtendedPostUpdateTimeout  time.Duration
	PreUpdateSafetyThreshold   time.Duration
	CommandTimeoutBackoff      time.Duration
	ReceiveBufferSize          int
	LogPath                    string
}

// DefaultConfig returns the literal defaults named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts:           3,
		MaxConnectionRetryAttempts: 3,
		BaseBackoffDelay:           1000 * time.Millisecond,
		MaxBackoffDelay:            30000 * time.Millisecond,
		IdleGateSleep:              3 * time.Second,
		PollInterval:               3 * time.Second,
		BaseTimeout:                120 * time.Second,
		ReportTimeout:              60 * time.Second,
		ExtendedPostUpdateTimeout:  150 * time.Second,
		PreUpdateSafetyThreshold:   90 * time.Second,
		CommandTimeoutBackoff:      15 * time.Second,
		ReceiveBufferSize:          16 * 1024,
		LogPath:                    DefaultLogPath,
	}
}

// tuningOverrides mirrors the subset of Config an ops YAML file may
// override; every field is a pointer so that an absent key in the file
// leaves the corresponding base value untouched. Durations are given in
// milliseconds to keep the file free of Go-specific duration syntax.
type tuningOverrides struct {
	MaxRetryAttemptsMs           *int    `yaml:"max_retry_attempts"`
	MaxConnectionRetryAttemptsMs *int    `yaml:"max_connection_retry_attempts"`
	BaseBackoffDelayMs           *int64  `yaml:"base_backoff_delay_ms"`
	MaxBackoffDelayMs            *int64  `yaml:"max_backoff_delay_ms"`
	IdleGateSleepMs              *int64  `yaml:"idle_gate_sleep_ms"`
	PollIntervalMs               *int64  `yaml:"poll_interval_ms"`
	BaseTimeoutMs                *int64  `yaml:"base_timeout_ms"`
	ReportTimeoutMs              *int64  `yaml:"report_timeout_ms"`
	ExtendedPostUpdateTimeoutMs  *int64  `yaml:"extended_post_update_timeout_ms"`
	PreUpdateSafetyThresholdMs   *int64  `yaml:"pre_update_safety_threshold_ms"`
	CommandTimeoutBackoffMs      *int64  `yaml:"command_timeout_backoff_ms"`
	ReceiveBufferSize            *int    `yaml:"receive_buffer_size"`
	LogPath                      *string `yaml:"log_path"`
}

// LoadTuningOverrides reads an optional YAML file overlaying the numeric
// knobs of base and returns the merged Config. A missing file is not an
// error — base is returned unchanged, since tuning is opt-in per §9's
// "implementers may inject it ... without changing observable behavior"
// spirit (the defaults alone already satisfy §6).
func LoadTuningOverrides(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("ped: read tuning file %s: %w", path, err)
	}

	var ov tuningOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return base, fmt.Errorf("ped: parse tuning file %s: %w", path, err)
	}

	cfg := base
	if ov.MaxRetryAttemptsMs != nil {
		cfg.MaxRetryAttempts = *ov.MaxRetryAttemptsMs
	}
	if ov.MaxConnectionRetryAttemptsMs != nil {
		cfg.MaxConnectionRetryAttempts = *ov.MaxConnectionRetryAttemptsMs
	}
	if ov.BaseBackoffDelayMs != nil {
		cfg.BaseBackoffDelay = time.Duration(*ov.BaseBackoffDelayMs) * time.Millisecond
	}
	if ov.MaxBackoffDelayMs != nil {
		cfg.MaxBackoffDelay = time.Duration(*ov.MaxBackoffDelayMs) * time.Millisecond
	}
	if ov.IdleGateSleepMs != nil {
		cfg.IdleGateSleep = time.Duration(*ov.IdleGateSleepMs) * time.Millisecond
	}
	if ov.PollIntervalMs != nil {
		cfg.PollInterval = time.Duration(*ov.PollIntervalMs) * time.Millisecond
	}
	if ov.BaseTimeoutMs != nil {
		cfg.BaseTimeout = time.Duration(*ov.BaseTimeoutMs) * time.Millisecond
	}
	if ov.ReportTimeoutMs != nil {
		cfg.ReportTimeout = time.Duration(*ov.ReportTimeoutMs) * time.Millisecond
	}
	if ov.ExtendedPostUpdateTimeoutMs != nil {
		cfg.ExtendedPostUpdateTimeout = time.Duration(*ov.ExtendedPostUpdateTimeoutMs) * time.Millisecond
	}
	if ov.PreUpdateSafetyThresholdMs != nil {
		cfg.PreUpdateSafetyThreshold = time.Duration(*ov.PreUpdateSafetyThresholdMs) * time.Millisecond
	}
	if ov.CommandTimeoutBackoffMs != nil {
		cfg.CommandTimeoutBackoff = time.Duration(*ov.CommandTimeoutBackoffMs) * time.Millisecond
	}
	if ov.ReceiveBufferSize != nil {
		cfg.ReceiveBufferSize = *ov.ReceiveBufferSize
	}
	if ov.LogPath != nil {
		cfg.LogPath = *ov.LogPath
	}
	return cfg, nil
}
