package models

import (
	"encoding/json"
	"strings"
)

// FeatureKind tags the shape of a FeatureValue.
type FeatureKind int

const (
	// FeaturePresent is a label shown without a value.
	FeaturePresent FeatureKind = iota + 1
	// FeatureText is a label with one value.
	FeatureText
	// FeatureMulti is a label with several values.
	FeatureMulti
)

// FeatureValue is the value of one labelled feature on a listing page.
type FeatureValue struct {
	kind   FeatureKind
	text   string
	values []string
}

// Present returns a presence-only feature value.
func Present() FeatureValue {
	return FeatureValue{kind: FeaturePresent}
}

// Text returns a single-valued feature value.
func Text(s string) FeatureValue {
	return FeatureValue{kind: FeatureText, text: s}
}

// Multi returns a multi-valued feature value.
func Multi(values []string) FeatureValue {
	cp := make([]string, len(values))
	copy(cp, values)
	return FeatureValue{kind: FeatureMulti, values: cp}
}

// Kind returns the variant tag.
func (v FeatureValue) Kind() FeatureKind { return v.kind }

// Text returns the single value. Multi values are joined with ", ".
func (v FeatureValue) Text() (string, bool) {
	switch v.kind {
	case FeatureText:
		return v.text, true
	case FeatureMulti:
		return strings.Join(v.values, ", "), true
	default:
		return "", false
	}
}

// List returns the values as a list; a single value becomes one element.
func (v FeatureValue) List() []string {
	switch v.kind {
	case FeatureText:
		return []string{v.text}
	case FeatureMulti:
		cp := make([]string, len(v.values))
		copy(cp, v.values)
		return cp
	default:
		return []string{}
	}
}

// Raw returns the value in its loosely typed form: true, a string or a
// string slice.
func (v FeatureValue) Raw() any {
	switch v.kind {
	case FeaturePresent:
		return true
	case FeatureText:
		return v.text
	case FeatureMulti:
		return v.List()
	default:
		return nil
	}
}

func (v FeatureValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

func (v *FeatureValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case bool:
		*v = Present()
	case string:
		*v = Text(t)
	case []any:
		values := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		*v = Multi(values)
	default:
		*v = FeatureValue{}
	}
	return nil
}

// Features maps a feature label to its value.
type Features map[string]FeatureValue

// Get returns the value of the first label present.
func (f Features) Get(labels ...string) (FeatureValue, bool) {
	for _, l := range labels {
		if v, ok := f[l]; ok {
			return v, true
		}
	}
	return FeatureValue{}, false
}

// Text returns the text of the first label present with a text value.
func (f Features) Text(labels ...string) string {
	for _, l := range labels {
		if v, ok := f[l]; ok {
			if s, ok := v.Text(); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
