package storage

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CellString converts a scanned column value to the text form used for
// profiling and contract sample data.
//
// Backends return different Go types for the same SQL type (pgx yields
// [16]byte for uuid and driver.Valuer wrappers for numeric); this helper keeps
// the output consistent across backends. nil becomes "".
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return formatTime(t)
	case [16]byte:
		return uuid.UUID(t).String()
	case driver.Valuer:
		inner, err := t.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		if _, loop := inner.(driver.Valuer); loop {
			return fmt.Sprint(inner)
		}
		return CellString(inner)
	default:
		return fmt.Sprint(v)
	}
}

// formatTime renders dates without a clock and timestamps without a zone
// suffix when they are UTC.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	if t.Location() == time.UTC {
		return t.Format("2006-01-02 15:04:05.999999")
	}
	return t.Format("2006-01-02 15:04:05.999999-07:00")
}
