package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// LabelSet is a set of restriction labels stored as a JSON array in a text column.
// A nil or empty set means "no restriction".
type LabelSet []string

func (s LabelSet) Contains(label string) bool {
	label = strings.TrimSpace(label)
	for _, l := range s {
		if strings.EqualFold(strings.TrimSpace(l), label) {
			return true
		}
	}
	return false
}

func (s LabelSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *LabelSet) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = LabelSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into LabelSet", src)
	}
	if len(raw) == 0 {
		*s = LabelSet{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("models: decode label set: %w", err)
	}
	*s = out
	return nil
}
