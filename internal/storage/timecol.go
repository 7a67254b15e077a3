package storage

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Layouts SQLite drivers use when a time is stored as text
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timeCol scans a time column whatever form the driver hands back.
// RETURNING clauses carry no declared type, so drivers may return raw text.
type timeCol struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner
func (c *timeCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.Time, c.Valid = time.Time{}, false
		return nil
	case time.Time:
		c.Time, c.Valid = v.UTC(), true
		return nil
	case int64:
		c.Time, c.Valid = time.Unix(v, 0).UTC(), true
		return nil
	case []byte:
		return c.parse(string(v))
	case string:
		return c.parse(v)
	}
	return fmt.Errorf("unsupported time column type %T", src)
}

func (c *timeCol) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			c.Time, c.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

// Value implements driver.Valuer
func (c timeCol) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	return c.Time.UTC(), nil
}
