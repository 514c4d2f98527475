package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EmailSummaryList is a custom type to store a snapshot's entries as a JSON column in GORM
type EmailSummaryList []EmailSummary

// Value implements driver.Valuer
func (l EmailSummaryList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *EmailSummaryList) Scan(value interface{}) error {
	if value == nil {
		*l = EmailSummaryList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for EmailSummaryList", value)
	}
	if len(bytes) == 0 {
		*l = EmailSummaryList{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}
