package history

import (
	"time"

	"github.com/google/uuid"
)

// EntityHistory is one snapshot of an entity's state and attributes,
// taken when a state- or attribute-changing event was observed. Rows are
// append-only: the purger deletes them by age, nothing updates them.
type EntityHistory struct {
	ID         string         `json:"id"`
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// GenerateID creates a new unique history row ID.
func GenerateID() string {
	return uuid.New().String()
}
