package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunLogEntry captures a field level failure that occurred during a mapping run.
type RunLogEntry struct {
	ID           uuid.UUID `json:"id"`
	RunID        uuid.UUID `json:"run_id"`
	MappingName  string    `json:"mapping_name"`
	TargetField  string    `json:"target_field"`
	RowNumber    *int      `json:"row_number,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}
