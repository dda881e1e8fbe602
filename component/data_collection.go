package component

import (
	"math"
	"sort"
	"strconv"

	"github.com/spf13/cast"
)

// DataCollection is the key-value parameter bag handed to a component's Load.
// Indexed parameters (per circuit, per generator) are stored as "KEY:i".
type DataCollection struct {
	values map[string]any
}

// NewDataCollection copies data into a new collection
func NewDataCollection(data map[string]any) *DataCollection {
	dc := &DataCollection{values: make(map[string]any, len(data))}
	for k, v := range data {
		dc.values[k] = v
	}
	return dc
}

func indexed(key string, idx int) string {
	return key + ":" + strconv.Itoa(idx)
}

// Set stores a scalar value
func (dc *DataCollection) Set(key string, value any) {
	dc.values[key] = value
}

// SetAt stores the idx'th value of an indexed parameter
func (dc *DataCollection) SetAt(key string, idx int, value any) {
	dc.values[indexed(key, idx)] = value
}

// Has reports whether key is present
func (dc *DataCollection) Has(key string) bool {
	_, ok := dc.values[key]
	return ok
}

// Keys returns the stored keys in sorted order
func (dc *DataCollection) Keys() []string {
	keys := make([]string, 0, len(dc.values))
	for k := range dc.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetFloat returns a numeric value. Integers are widened.
func (dc *DataCollection) GetFloat(key string) (float64, bool) {
	return toFloat(dc.values[key])
}

// GetFloatAt returns the idx'th value of an indexed numeric parameter
func (dc *DataCollection) GetFloatAt(key string, idx int) (float64, bool) {
	return toFloat(dc.values[indexed(key, idx)])
}

// GetInt returns an integer value. Whole floats are narrowed.
func (dc *DataCollection) GetInt(key string) (int, bool) {
	return toInt(dc.values[key])
}

// GetIntAt returns the idx'th value of an indexed integer parameter
func (dc *DataCollection) GetIntAt(key string, idx int) (int, bool) {
	return toInt(dc.values[indexed(key, idx)])
}

// GetString returns a string value; numbers are formatted.
func (dc *DataCollection) GetString(key string) (string, bool) {
	return toString(dc.values[key])
}

// GetStringAt returns the idx'th value of an indexed string parameter
func (dc *DataCollection) GetStringAt(key string, idx int) (string, bool) {
	return toString(dc.values[indexed(key, idx)])
}

// GetBool returns a boolean; numeric 0/1 are accepted.
func (dc *DataCollection) GetBool(key string) (bool, bool) {
	return toBool(dc.values[key])
}

// GetBoolAt returns the idx'th value of an indexed boolean parameter
func (dc *DataCollection) GetBoolAt(key string, idx int) (bool, bool) {
	return toBool(dc.values[indexed(key, idx)])
}

// FloatOr returns the value for key, or def when it is missing
func (dc *DataCollection) FloatOr(key string, def float64) float64 {
	if v, ok := dc.GetFloat(key); ok {
		return v
	}
	return def
}

// FloatAtOr returns the idx'th value for key, or def when it is missing
func (dc *DataCollection) FloatAtOr(key string, idx int, def float64) float64 {
	if v, ok := dc.GetFloatAt(key, idx); ok {
		return v
	}
	return def
}

// Conversions go through cast so quoted numbers and any integer width are
// accepted. Missing (nil) values never convert.

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

func toInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, false
		}
	}
	i, err := cast.ToIntE(v)
	return i, err == nil
}

func toString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	return s, err == nil
}

func toBool(v any) (bool, bool) {
	if v == nil {
		return false, false
	}
	b, err := cast.ToBoolE(v)
	return b, err == nil
}
