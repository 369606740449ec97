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

import "time"

// ReportType selects which end-of-day report the gateway should print (§6).
type ReportType string

const (
	XReport ReportType = "X"
	ZReport ReportType = "Z"
)

// reportSourceID returns the literal correlation id the gateway expects
// for a given report type (§6): not derived, not generated, exactly
// "XReport" or "ZReport".
func (r ReportType) reportSourceID() string {
	switch r {
	case XReport:
		return "XReport"
	case ZReport:
		return "ZReport"
	default:
		return string(r) + "Report"
	}
}

// RunReport drives an X or Z report to completion through engine, using
// the report's fixed correlation id and cfg.ReportTimeout as the phase
// deadline rather than a payment transaction's longer baseTimeout (§6,
// §8 S5) — a report involves no card or PIN entry.
func RunReport(engine *Engine, cfg Config, reportType ReportType, pollInterval time.Duration) (Frame, error) {
	sourceID := reportType.reportSourceID()
	payload := map[string]string{
		"type":       "getReport",
		"reportType": string(reportType),
	}
	return engine.Run(sourceID, payload, pollInterval, cfg.ReportTimeout)
}
