package poclog

import (
	"time"
)

// Detection identifies the technique that produced a PoC log record.
type Detection string

const (
	DetectionError Detection = "error"
	DetectionBool  Detection = "bool"
	DetectionTime  Detection = "time"
	DetectionOrder Detection = "order"
	DetectionDIY   Detection = "diy"
)

var detections = map[Detection]struct{}{
	DetectionError: {},
	DetectionBool:  {},
	DetectionTime:  {},
	DetectionOrder: {},
	DetectionDIY:   {},
}

// IsValid returns true for the known detection techniques.
func (d Detection) IsValid() bool {
	_, ok := detections[d]
	return ok
}

// Record is a single PoC log entry produced while scanning a request.
type Record struct {
	ID        int64     `json:"id" csv:"id"`
	UID       string    `json:"uid" csv:"uid"`
	Key       string    `json:"key" csv:"key"`
	Method    string    `json:"method" csv:"method"`
	URL       string    `json:"url" csv:"url"`
	Parameter string    `json:"parameter,omitempty" csv:"parameter"`
	Payload   string    `json:"payload,omitempty" csv:"payload"`
	Detection Detection `json:"detection,omitempty" csv:"detection"`
	Status    int       `json:"status,omitempty" csv:"status"`
	Note      string    `json:"note,omitempty" csv:"note"`
	CreatedAt time.Time `json:"createdAt" csv:"createdAt"`
}

// Submission is the client supplied part of a Record.
type Submission struct {
	Key       string    `json:"-"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Parameter string    `json:"parameter,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Detection Detection `json:"detection,omitempty"`
	Status    int       `json:"status,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Receipt is returned for every accepted Submission. Replayed is true when the receipt was
// served from the idempotency window instead of a new allocation.
type Receipt struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	UID      string `json:"uid"`
	Replayed bool   `json:"replayed"`
}

// KeySummary describes the entry of a single key.
type KeySummary struct {
	Key       string    `json:"key"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status is a point in time view of the service.
type Status struct {
	NextID  int64 `json:"nextId"`
	Keys    int   `json:"keys"`
	Records int   `json:"records"`
}

// Snapshot is the archived form of a single entry.
type Snapshot struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	Records   []Record  `json:"records"`
}
