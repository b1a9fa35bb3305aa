package vitals

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hdu-care/hdu-service/internal/apperr"
)

// Flag values.
const (
	Low  = "low"
	High = "high"
)

// ErrInvalidRange marks a config whose minimum exceeds its maximum.
var ErrInvalidRange = errors.New("normal range minimum exceeds maximum")

// Sample holds the numeric readings of one vitals recording. Absent keys are
// readings that were not taken.
type Sample map[string]float64

// Flags maps a vital name to Low or High.
type Flags map[string]string

// Critical reports whether any vital is out of range.
func (f Flags) Critical() bool { return len(f) > 0 }

// Names returns the flagged vital names in order.
func (f Flags) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Classify flags every sample value strictly outside the normal range of an
// active config with the same name. Boundary values are normal. Vitals with
// no reading are skipped. A config with min > max that matches a reading
// fails the whole classification.
func Classify(sample Sample, configs []Config) (Flags, error) {
	flags := Flags{}
	for _, c := range configs {
		if !c.IsActive {
			continue
		}
		value, ok := sample[c.Name]
		if !ok {
			continue
		}
		if c.NormalRangeMin != nil && c.NormalRangeMax != nil && *c.NormalRangeMin > *c.NormalRangeMax {
			return nil, fmt.Errorf("vital %q: %w", c.Name, ErrInvalidRange)
		}
		switch {
		case c.NormalRangeMax != nil && value > *c.NormalRangeMax:
			flags[c.Name] = High
		case c.NormalRangeMin != nil && value < *c.NormalRangeMin:
			flags[c.Name] = Low
		}
	}
	return flags, nil
}

// ValidateRange rejects a min greater than max.
func ValidateRange(lo, hi *float64) error {
	if lo != nil && hi != nil && *lo > *hi {
		return apperr.Validation("normalRangeMin must not exceed normalRangeMax")
	}
	return nil
}

// ValidateDynamic checks each dynamic value against the active config of the
// same name. Builtin vitals have their own fields and are rejected here.
func ValidateDynamic(d DynamicVitals, configs []Config) error {
	byName := make(map[string]Config, len(configs))
	for _, c := range configs {
		if c.IsActive {
			byName[c.Name] = c
		}
	}
	for name, v := range d {
		if IsBuiltin(name) {
			return apperr.Validation(fmt.Sprintf("vital %q must be sent as a dedicated field", name))
		}
		c, ok := byName[name]
		if !ok {
			return apperr.Validation(fmt.Sprintf("unknown vital %q", name))
		}
		if v.IsNull() {
			continue
		}
		switch c.DataType {
		case DataTypeText:
			if v.Text == nil {
				return apperr.Validation(fmt.Sprintf("vital %q must be text", name))
			}
		default:
			if v.Number == nil {
				return apperr.Validation(fmt.Sprintf("vital %q must be a number", name))
			}
		}
	}
	return nil
}

// AddDynamic copies the numeric dynamic values into the sample.
func (s Sample) AddDynamic(d DynamicVitals) {
	for name, v := range d {
		if v.Number != nil {
			s[name] = *v.Number
		}
	}
}
