package engine

import (
	"sync"
	"time"

	"github.com/hyprpal/clusterdock/internal/metrics"
)

const inspectorHistoryLimit = 128

// Correction records a position change forwarded to the host.
type Correction struct {
	Timestamp time.Time    `json:"timestamp"`
	Path      metrics.Path `json:"path"`
	Variant   string       `json:"variant"`
	Trigger   string       `json:"trigger,omitempty"`
	Session   string       `json:"session,omitempty"`
	From      float64      `json:"from"`
	To        float64      `json:"to"`
}

type correctionLog struct {
	mu      sync.Mutex
	entries []Correction
	limit   int
}

func newCorrectionLog(limit int) *correctionLog {
	if limit <= 0 {
		limit = inspectorHistoryLimit
	}
	return &correctionLog{limit: limit}
}

func (l *correctionLog) record(entry Correction) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, entry)
}

func (l *correctionLog) snapshot() []Correction {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	return append([]Correction(nil), l.entries...)
}
