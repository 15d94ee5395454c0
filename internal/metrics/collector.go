// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Size metrics in characters (only for LLM operations)
	TotalInputChars  int64
	TotalOutputChars int64
	MinInputChars    int64
	MaxInputChars    int64
	MinOutputChars   int64
	MaxOutputChars   int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`

	// Size stats (nil if not applicable)
	TotalInputChars  *int64   `json:"totalInputChars,omitempty"`
	TotalOutputChars *int64   `json:"totalOutputChars,omitempty"`
	AvgInputChars    *float64 `json:"avgInputChars,omitempty"`
	AvgOutputChars   *float64 `json:"avgOutputChars,omitempty"`
	MinInputChars    *int64   `json:"minInputChars,omitempty"`
	MaxInputChars    *int64   `json:"maxInputChars,omitempty"`
	MinOutputChars   *int64   `json:"minOutputChars,omitempty"`
	MaxOutputChars   *int64   `json:"maxOutputChars,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptimeSeconds"`
	ChatRequest   *OperationSnapshot `json:"chatRequest,omitempty"`
	LLMGenerate   *OperationSnapshot `json:"llmGenerate,omitempty"`
}

// Operation names for the collector.
const (
	OpChatRequest = "chat_request"
	OpLLMGenerate = "llm_generate"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime:        time.Duration(math.MaxInt64),
			MinInputChars:  math.MaxInt64,
			MinOutputChars: math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordLLMUsage records timing and payload sizes for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputChars, outputChars int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	m.TotalInputChars += inputChars
	m.TotalOutputChars += outputChars

	if inputChars < m.MinInputChars {
		m.MinInputChars = inputChars
	}
	if inputChars > m.MaxInputChars {
		m.MaxInputChars = inputChars
	}
	if outputChars < m.MinOutputChars {
		m.MinOutputChars = outputChars
	}
	if outputChars > m.MaxOutputChars {
		m.MaxOutputChars = outputChars
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeSizes bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeSizes && (m.TotalInputChars > 0 || m.TotalOutputChars > 0) {
		totalIn := m.TotalInputChars
		totalOut := m.TotalOutputChars
		avgIn := float64(m.TotalInputChars) / float64(m.Count)
		avgOut := float64(m.TotalOutputChars) / float64(m.Count)
		minIn := m.MinInputChars
		maxIn := m.MaxInputChars
		minOut := m.MinOutputChars
		maxOut := m.MaxOutputChars

		// Reset sentinel values for display
		if minIn == math.MaxInt64 {
			minIn = 0
		}
		if minOut == math.MaxInt64 {
			minOut = 0
		}

		snap.TotalInputChars = &totalIn
		snap.TotalOutputChars = &totalOut
		snap.AvgInputChars = &avgIn
		snap.AvgOutputChars = &avgOut
		snap.MinInputChars = &minIn
		snap.MaxInputChars = &maxIn
		snap.MinOutputChars = &minOut
		snap.MaxOutputChars = &maxOut
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		ChatRequest:   snapshotOp(c.ops[OpChatRequest], false),
		LLMGenerate:   snapshotOp(c.ops[OpLLMGenerate], true),
	}
}
