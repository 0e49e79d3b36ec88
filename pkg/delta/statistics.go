// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

import (
	"fmt"
	"time"
)

// Statistics tracks frame, sweep and report counters for a polling session
// or a passive capture.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Frame counters
	TotalFrames      uint64
	ValidFrames      uint64
	CRCErrors        uint64
	FramingErrors    uint64
	LengthMismatches uint64
	CommandMismatch  uint64
	Timeouts         uint64

	// Sweep counters
	Sweeps          uint64
	CompletedSweeps uint64
	TimedOutSweeps  uint64
	SkippedSweeps   uint64

	// Report counters
	ReportsSent  uint64
	ReportErrors uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one received frame and the error it was rejected with, if
// any.
func (s *Statistics) Update(err error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if err == nil {
		s.ValidFrames++
		return
	}

	switch Classify(err) {
	case AnomalyCRCError:
		s.CRCErrors++
	case AnomalyLengthMismatch:
		s.LengthMismatches++
		s.FramingErrors++
	case AnomalyCommandMismatch:
		s.CommandMismatch++
		s.FramingErrors++
	default:
		s.FramingErrors++
	}
}

// RecordSweepStart counts a sweep that began transmitting.
func (s *Statistics) RecordSweepStart() {
	s.Sweeps++
	s.LastUpdateTime = time.Now()
}

// RecordSweepComplete counts a sweep that collected every value.
func (s *Statistics) RecordSweepComplete() {
	s.CompletedSweeps++
	s.LastUpdateTime = time.Now()
}

// RecordTimeout counts a sweep abandoned on a response timeout.
func (s *Statistics) RecordTimeout() {
	s.Timeouts++
	s.TimedOutSweeps++
	s.LastUpdateTime = time.Now()
}

// RecordSkipped counts a sweep tick that arrived while a sweep was running.
func (s *Statistics) RecordSkipped() {
	s.SkippedSweeps++
}

// RecordReport counts a report handed to the transport, or a report that
// could not be built.
func (s *Statistics) RecordReport(err error) {
	if err != nil {
		s.ReportErrors++
		return
	}
	s.ReportsSent++
}

// Errors returns the total number of rejected frames.
func (s *Statistics) Errors() uint64 {
	return s.CRCErrors + s.FramingErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, crcPercent, framingPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		crcPercent = float64(s.CRCErrors) * 100.0 / float64(s.TotalFrames)
		framingPercent = float64(s.FramingErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, crcPercent)
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", s.FramingErrors, framingPercent)
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.CommandMismatch > 0 {
			result += fmt.Sprintf("  Command Mismatch: %5d\n", s.CommandMismatch)
		}
	}

	if s.Sweeps > 0 {
		result += fmt.Sprintf("Sweeps:          %8d (complete %d, timed out %d, skipped %d)\n",
			s.Sweeps, s.CompletedSweeps, s.TimedOutSweeps, s.SkippedSweeps)
	}
	if s.ReportsSent > 0 || s.ReportErrors > 0 {
		result += fmt.Sprintf("Reports:         %8d (build errors %d)\n", s.ReportsSent, s.ReportErrors)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
