package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SearchRun is one executed search as stored in search_runs.
type SearchRun struct {
	ID            string      `json:"id" db:"id"`
	Query         string      `json:"query" db:"query"`
	Latitude      float64     `json:"latitude" db:"latitude"`
	Longitude     float64     `json:"longitude" db:"longitude"`
	Radius        int         `json:"radius" db:"radius"`
	Pages         int         `json:"pages" db:"pages"`
	Rows          int         `json:"rows" db:"row_count"`
	Status        string      `json:"status" db:"status"`
	ErrorType     string      `json:"error_type,omitempty" db:"error_type"`
	DurationMS    int64       `json:"duration_ms" db:"duration_ms"`
	CorrelationID string      `json:"correlation_id,omitempty" db:"correlation_id"`
	Metadata      RunMetadata `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// RunMetadata holds free-form run attributes stored as JSONB
type RunMetadata map[string]string

// Implement driver.Valuer and sql.Scanner for RunMetadata
func (m RunMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *RunMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = RunMetadata{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into RunMetadata", value)
	}
}
