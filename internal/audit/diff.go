package audit

import (
	"reflect"
	"time"
)

// Diff returns the fields of newState whose value differs from oldState.
// Keys only present in oldState are ignored. Timestamps compare at
// one-second granularity. Neither input is modified.
func Diff(oldState, newState State) map[string]Change {
	changes := make(map[string]Change)
	for key, newVal := range newState {
		oldVal := oldState[key]
		if equalValues(oldVal, newVal) {
			continue
		}
		changes[key] = Change{Old: oldVal, New: newVal}
	}
	return changes
}

func equalValues(a, b interface{}) bool {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	at, aIsTime := a.(time.Time)
	bt, bIsTime := b.(time.Time)
	if aIsTime || bIsTime {
		if !aIsTime {
			at, aIsTime = parseTime(a)
		}
		if !bIsTime {
			bt, bIsTime = parseTime(b)
		}
		if !aIsTime || !bIsTime {
			return false
		}
		return at.Truncate(time.Second).Equal(bt.Truncate(time.Second))
	}

	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}

	return reflect.DeepEqual(a, b)
}

// normalize dereferences pointers, collapsing nil pointers to nil.
func normalize(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
