// Package activity reports inventory scans: events are buffered and published
// to Kafka, aggregated by a consumer, served over HTTP and periodically
// snapshotted to Postgres.
package activity

import "time"

type ScanType string

const (
	ScanUsageIndex       ScanType = "usage_index"
	ScanReferenceIndex   ScanType = "reference_index"
	ScanReferenceCatalog ScanType = "reference_catalog"
	ScanExport           ScanType = "export"
	ScanChunk            ScanType = "chunk"
	ScanBlockList        ScanType = "block_list"
	ScanKitchenSink      ScanType = "kitchen_sink"
)

// ScanEvent describes one inventory pass over the content store.
type ScanEvent struct {
	Type       ScanType  `json:"type"`
	Items      int       `json:"items"`
	BlockTypes int       `json:"block_types"`
	UsagePairs int       `json:"usage_pairs"`
	Cycles     int       `json:"cycles"`
	Failed     bool      `json:"failed"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Tracker receives scan events. Implementations must not block.
type Tracker interface {
	Track(event ScanEvent)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Track(ScanEvent) {}
