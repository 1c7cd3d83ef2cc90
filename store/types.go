package store

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// stringArray scans/writes a Postgres TEXT[] column (e.g. {Mon,Fri}) without
// pulling in pgtype for a single array column.
type stringArray []string

func (a *stringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}

	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("stringArray: unsupported scan type %T", src)
	}

	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		*a = stringArray{}
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make(stringArray, len(parts))
	for i, p := range parts {
		out[i] = strings.Trim(p, `"`)
	}
	*a = out
	return nil
}

func (a stringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}
