package gateway

import (
	"encoding/json"
	"sync"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "in"
	DirectionOutbound Direction = "out"
)

// Record is one observed message, inbound or outbound.
type Record struct {
	Direction Direction       `json:"direction"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	At        time.Time       `json:"at"`
}

// Sink is the diagnostic log of every message crossing the gateway, bounded
// to the most recent capacity entries. Test harnesses and the diagnostics
// endpoint read it; nothing else depends on it.
type Sink struct {
	mu       sync.Mutex
	capacity int
	records  []Record
}

func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 256
	}
	return &Sink{capacity: capacity}
}

func (s *Sink) Record(dir Direction, msgType string, payload []byte, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(json.RawMessage, len(payload))
	copy(raw, payload)
	s.records = append(s.records, Record{Direction: dir, Type: msgType, Payload: raw, At: at})
	if len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
}

// Records returns a copy of the retained records, oldest first.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// OfType returns retained records matching a direction and message type.
func (s *Sink) OfType(dir Direction, msgType string) []Record {
	var out []Record
	for _, r := range s.Records() {
		if r.Direction == dir && r.Type == msgType {
			out = append(out, r)
		}
	}
	return out
}
