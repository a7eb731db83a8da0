package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SlotList is a list of canonical slot strings persisted as JSON.
type SlotList []string

// Value implements driver.Valuer.
func (l SlotList) Value() (driver.Value, error) {
	if l == nil {
		l = SlotList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *SlotList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = SlotList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into SlotList", src)
	}
}

// Ranges parses every slot string, failing on the first malformed one.
func (l SlotList) Ranges() ([]SlotRange, error) {
	ranges := make([]SlotRange, 0, len(l))
	for _, raw := range l {
		r, err := ParseSlot(raw)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
