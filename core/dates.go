package core

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"
)

const (
	DateFormat  = "2006-01-02"
	ClockFormat = "15:04:05"
)

// Date is a nullable calendar date serialized as "YYYY-MM-DD".
type Date struct {
	null.Time
}

func DateFrom(t time.Time) Date {
	return Date{null.TimeFrom(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, err
	}
	return DateFrom(t), nil
}

func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Time.Format(DateFormat)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		d.Valid = false
		return nil
	}
	t, err := time.Parse(`"`+DateFormat+`"`, s)
	if err != nil {
		return err
	}
	*d = DateFrom(t)
	return nil
}

// Clock is a time of day serialized as "HH:MM:SS".
type Clock string

func ClockFrom(hour, min, sec int) Clock {
	return Clock(fmt.Sprintf("%02d:%02d:%02d", hour, min, sec))
}

func (c *Clock) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*c = Clock(v.Format(ClockFormat))
	case []byte:
		*c = Clock(v)
	case string:
		*c = Clock(v)
	case nil:
		*c = ""
	default:
		return fmt.Errorf("cannot scan %T into Clock", value)
	}
	if len(*c) > len(ClockFormat) {
		*c = (*c)[:len(ClockFormat)]
	}
	return nil
}

func (c Clock) Value() (driver.Value, error) {
	return string(c), nil
}
