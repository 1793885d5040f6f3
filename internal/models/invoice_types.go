package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// FlexString is a string type that tolerates the invoicing backend's
// dynamic typing: empty text fields come back as boolean `false` instead
// of an empty string.
type FlexString string

// UnmarshalJSON handles dynamic typing from the invoicing backend
func (fs *FlexString) UnmarshalJSON(data []byte) error {
	// 1. Try string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fs = FlexString(s)
		return nil
	}

	// 2. Try boolean (false means empty)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if !b {
			*fs = ""
			return nil
		}
		*fs = "true"
		return nil
	}

	return errors.New("FlexString: cannot unmarshal value into string")
}

// Value implements driver.Valuer interface for database storage
func (fs FlexString) Value() (driver.Value, error) {
	return string(fs), nil
}

// Scan implements sql.Scanner interface for database retrieval
func (fs *FlexString) Scan(value interface{}) error {
	if value == nil {
		*fs = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*fs = FlexString(v)
	case []byte:
		*fs = FlexString(v)
	default:
		return fmt.Errorf("FlexString: cannot scan type %T", value)
	}
	return nil
}

// String returns the plain string value
func (fs FlexString) String() string {
	return string(fs)
}
