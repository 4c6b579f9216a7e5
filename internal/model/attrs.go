package model

import "strconv"

// Per-mapping tunable attribute keys (spec §4.8).
const (
	AttrLogLevel                = "log_level"
	AttrPollingPeriod           = "polling_period"
	AttrConnectionReset         = "connection_reset"
	AttrWaitDuration            = "wait_duration"
	AttrCycleThreshold          = "cycle_threshold"
	AttrUpdatePeriod            = "update_period"
	AttrEnableWriteToReadonly   = "enable_write_to_readonly"
)

// defaults per spec §4.8's table.
var intDefaults = map[string]int{
	AttrLogLevel:              2,
	AttrPollingPeriod:         5,
	AttrConnectionReset:       1000,
	AttrWaitDuration:          150,
	AttrCycleThreshold:        0,
	AttrUpdatePeriod:          0,
	AttrEnableWriteToReadonly: 0,
}

// IntAttr returns a mapping attribute as an int, falling back to the spec's
// documented default when absent or unparseable.
func (m *DataMapping) IntAttr(key string) int {
	def := intDefaults[key]
	if m.Attrs == nil {
		return def
	}
	raw, ok := m.Attrs[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// LogLevel is the threshold from spec §4.8 (0=err,1=+warn,2=+info,3=+debug).
func (m *DataMapping) LogLevel() int { return clamp(m.IntAttr(AttrLogLevel), 0, 3) }

// PollingPeriod is seconds between cycles (1-100).
func (m *DataMapping) PollingPeriod() int { return clamp(m.IntAttr(AttrPollingPeriod), 1, 100) }

// ConnectionReset is cycles between forced reconnect (1-1,000,000).
func (m *DataMapping) ConnectionReset() int {
	return clamp(m.IntAttr(AttrConnectionReset), 1, 1_000_000)
}

// WaitDuration is the offline backoff in seconds; -1 means exit instead of
// retrying. Unlike the other attributes this one's valid range includes -1,
// so it isn't simply clamped into [1,..].
func (m *DataMapping) WaitDuration() int {
	v := m.IntAttr(AttrWaitDuration)
	if v == -1 || v >= 1 {
		return v
	}
	return intDefaults[AttrWaitDuration]
}

// CycleThreshold is the record-count floor for emitting extra cycle logs.
func (m *DataMapping) CycleThreshold() int { return maxInt(m.IntAttr(AttrCycleThreshold), 0) }

// UpdatePeriod is how many records between progress logs within a large cycle.
func (m *DataMapping) UpdatePeriod() int { return maxInt(m.IntAttr(AttrUpdatePeriod), 0) }

// EnableWriteToReadonly allows writing SCM read-only fields when set.
func (m *DataMapping) EnableWriteToReadonly() bool { return m.IntAttr(AttrEnableWriteToReadonly) != 0 }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
