package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// vectorColumn stores an embedding as a JSON array in a text column.
type vectorColumn []float64

func (v vectorColumn) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float64(v))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (v *vectorColumn) Scan(src any) error {
	return scanJSON(src, v)
}

// jsonColumn stores open metadata as a JSON object in a text column.
type jsonColumn map[string]any

func (m jsonColumn) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *jsonColumn) Scan(src any) error {
	return scanJSON(src, m)
}

func scanJSON(src, dst any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}
