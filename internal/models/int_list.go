package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// IntList is a list of integers persisted as JSON, used for weekday
// patterns.
type IntList []int

// Value implements driver.Valuer.
func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		l = IntList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *IntList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = IntList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into IntList", src)
	}
}

// Contains reports membership.
func (l IntList) Contains(n int) bool {
	for _, v := range l {
		if v == n {
			return true
		}
	}
	return false
}
