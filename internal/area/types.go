package area

import (
	"time"

	"github.com/google/uuid"
)

// Area represents a logical grouping of devices (room, floor, zone).
// Areas form a tree through ParentID; a nil parent marks a root area.
type Area struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Node is an area with its resolved children, as returned by BuildTree.
type Node struct {
	Area     Area    `json:"area"`
	Children []*Node `json:"children,omitempty"`
}

// DeepCopy creates a copy of the area with its own ParentID pointer.
func (a *Area) DeepCopy() *Area {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.ParentID != nil {
		parent := *a.ParentID
		cpy.ParentID = &parent
	}
	return &cpy
}

// GenerateID creates a new unique area ID.
func GenerateID() string {
	return uuid.New().String()
}
