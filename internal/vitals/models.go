package vitals

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hdu-care/hdu-service/internal/audit"
)

// Data types a vital may carry.
const (
	DataTypeNumber = "number"
	DataTypeText   = "text"
)

// Config is one row of vital_signs_config.
type Config struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Label          string     `json:"label"`
	Unit           *string    `json:"unit"`
	DataType       string     `json:"dataType"`
	NormalRangeMin *float64   `json:"normalRangeMin"`
	NormalRangeMax *float64   `json:"normalRangeMax"`
	IsActive       bool       `json:"isActive"`
	DisplayOrder   int        `json:"displayOrder"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// AuditSnapshot returns the audited fields of the config.
func (c Config) AuditSnapshot() audit.State {
	return audit.State{
		"name":           c.Name,
		"label":          c.Label,
		"unit":           c.Unit,
		"dataType":       c.DataType,
		"normalRangeMin": c.NormalRangeMin,
		"normalRangeMax": c.NormalRangeMax,
		"isActive":       c.IsActive,
		"displayOrder":   c.DisplayOrder,
	}
}

// CreateConfigRequest is the body of a new vital definition.
type CreateConfigRequest struct {
	Name           string   `json:"name"`
	Label          string   `json:"label"`
	Unit           *string  `json:"unit"`
	DataType       string   `json:"dataType"`
	NormalRangeMin *float64 `json:"normalRangeMin"`
	NormalRangeMax *float64 `json:"normalRangeMax"`
	IsActive       *bool    `json:"isActive"`
	DisplayOrder   int      `json:"displayOrder"`
}

// UpdateConfigRequest changes only the fields that are set. The name is the
// stable key and cannot change.
type UpdateConfigRequest struct {
	Label          *string  `json:"label,omitempty"`
	Unit           *string  `json:"unit,omitempty"`
	DataType       *string  `json:"dataType,omitempty"`
	NormalRangeMin *float64 `json:"normalRangeMin,omitempty"`
	NormalRangeMax *float64 `json:"normalRangeMax,omitempty"`
	ClearMin       bool     `json:"clearMin,omitempty"`
	ClearMax       bool     `json:"clearMax,omitempty"`
	IsActive       *bool    `json:"isActive,omitempty"`
	DisplayOrder   *int     `json:"displayOrder,omitempty"`
}

// Apply returns a copy of c with the request's changes.
func (r UpdateConfigRequest) Apply(c Config) Config {
	if r.Label != nil {
		c.Label = *r.Label
	}
	if r.Unit != nil {
		c.Unit = r.Unit
	}
	if r.DataType != nil {
		c.DataType = *r.DataType
	}
	if r.NormalRangeMin != nil {
		c.NormalRangeMin = r.NormalRangeMin
	}
	if r.ClearMin {
		c.NormalRangeMin = nil
	}
	if r.NormalRangeMax != nil {
		c.NormalRangeMax = r.NormalRangeMax
	}
	if r.ClearMax {
		c.NormalRangeMax = nil
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	if r.DisplayOrder != nil {
		c.DisplayOrder = *r.DisplayOrder
	}
	return c
}

// DynamicValue is a number or a text value, never both.
type DynamicValue struct {
	Number *float64
	Text   *string
}

func NumberValue(f float64) DynamicValue { return DynamicValue{Number: &f} }
func TextValue(s string) DynamicValue    { return DynamicValue{Text: &s} }

// IsNull reports whether the value carries nothing.
func (v DynamicValue) IsNull() bool { return v.Number == nil && v.Text == nil }

func (v DynamicValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Number != nil:
		return json.Marshal(*v.Number)
	case v.Text != nil:
		return json.Marshal(*v.Text)
	default:
		return []byte("null"), nil
	}
}

func (v *DynamicValue) UnmarshalJSON(b []byte) error {
	*v = DynamicValue{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v.Text = &s
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("dynamic vital must be a number or a string")
	}
	v.Number = &f
	return nil
}

// DynamicVitals holds vitals defined only in configuration, keyed by config
// name. It is stored as JSONB.
type DynamicVitals map[string]DynamicValue

func (d DynamicVitals) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *DynamicVitals) Scan(src interface{}) error {
	var b []byte
	switch t := src.(type) {
	case nil:
		*d = DynamicVitals{}
		return nil
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return errors.New("unsupported type for dynamic vitals")
	}
	out := DynamicVitals{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
	}
	*d = out
	return nil
}

// Snapshot converts the values for audit storage.
func (d DynamicVitals) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		switch {
		case v.Number != nil:
			out[k] = *v.Number
		case v.Text != nil:
			out[k] = *v.Text
		default:
			out[k] = nil
		}
	}
	return out
}
