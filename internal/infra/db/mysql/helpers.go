package mysql

import (
	"database/sql"
	"encoding/json"
	"time"
)

// encodeJSON marshals a value for a nullable JSON column; nil becomes SQL NULL.
func encodeJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// decodeJSON fills *dst from a nullable JSON column.
func decodeJSON[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	out := new(T)
	if err := json.Unmarshal([]byte(col.String), out); err != nil {
		return err
	}
	*dst = out
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
