package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is free-form entry metadata stored as JSONB.
type Metadata map[string]string

// Value implements driver.Valuer so Metadata can be bound to a JSONB column.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner, handling NULL json fields from the DB.
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
}

// Clone returns a copy so callers cannot mutate a committed entry's metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
