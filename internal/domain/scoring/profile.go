package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// QualificationsKey is the profile field holding the qualification name to status map.
const QualificationsKey = "qualifications"

// validStatus is the only qualification status that earns points.
const validStatus = "valid"

// Profile is the free-form crew record fed to the engine. Every field is
// optional; readers degrade to zero values instead of failing.
type Profile struct {
	Fields         map[string]any
	Qualifications map[string]string
}

// NewProfile builds a profile from decoded form data. A "qualifications"
// entry is lifted out of fields; statuses that are not strings are dropped.
func NewProfile(fields map[string]any) Profile {
	p := Profile{Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		if k == QualificationsKey {
			p.Qualifications = qualificationsFrom(v)
			continue
		}
		p.Fields[k] = v
	}
	return p
}

func qualificationsFrom(v any) map[string]string {
	out := make(map[string]string)
	switch q := v.(type) {
	case map[string]any:
		for name, status := range q {
			if s, ok := status.(string); ok {
				out[name] = s
			}
		}
	case map[string]string:
		for name, status := range q {
			out[name] = status
		}
	}
	return out
}

// UnmarshalJSON decodes a flat JSON object into a profile.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*p = NewProfile(raw)
	return nil
}

// MarshalJSON encodes the profile back to its flat form.
func (p Profile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+1)
	for k, v := range p.Fields {
		out[k] = v
	}
	if len(p.Qualifications) > 0 {
		out[QualificationsKey] = p.Qualifications
	}
	return json.Marshal(out)
}

// Number returns a numeric field. Missing, malformed, NaN and negative values
// read as 0; values beyond float64 range read as math.MaxFloat64.
func (p Profile) Number(name string) float64 {
	v, ok := p.Fields[name]
	if !ok {
		return 0
	}
	f := toFloat(v)
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case math.IsInf(f, 1):
		return math.MaxFloat64
	}
	return f
}

// Choice returns a categorical field trimmed of surrounding space.
// The second result is false when the field is absent, empty or not a string.
func (p Profile) Choice(name string) (string, bool) {
	s, ok := p.Fields[name].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// ValidQualifications counts qualifications whose status is "valid".
func (p Profile) ValidQualifications() int {
	n := 0
	for _, status := range p.Qualifications {
		if strings.EqualFold(strings.TrimSpace(status), validStatus) {
			n++
		}
	}
	return n
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		return parseFloat(string(n))
	case string:
		return parseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""))
	default:
		return 0
	}
}

// parseFloat keeps the sign of out-of-range input: ParseFloat reports
// ErrRange with ±Inf on overflow and 0 on underflow.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return 0
	}
	return f
}
