package journal

import "github.com/google/uuid"

// Sequencer stamps entries with strictly increasing sequence numbers.
// Journal order is seq order, never wall time, so two runs of the same
// evaluations produce the same journal shape.
type Sequencer interface {
	Next() int64
}

// IDGenerator produces entry IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7 generates time-sortable entry IDs.
type UUIDv7 struct{}

// Generate returns a hyphenated UUIDv7.
func (UUIDv7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
