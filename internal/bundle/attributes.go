package bundle

import (
	"encoding/json"
	"strings"
)

// AttributeEntry is the list-of-entries form the model emits.
type AttributeEntry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	ValueType string `json:"value_type"`
}

// Attributes accepts both wire forms of product attributes: the list of
// entries produced by the model and the key-to-value mapping stored after
// normalization. Normalization happens exactly once, after validation;
// normalizing a mapping is a no-op.
type Attributes struct {
	entries []AttributeEntry
	values  map[string]string
}

// AttributesFromMap builds an already-normalized attribute set.
func AttributesFromMap(values map[string]string) Attributes {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Attributes{values: copied}
}

// Normalized reports whether the mapping form is in effect.
func (a *Attributes) Normalized() bool {
	return a.values != nil
}

// Values returns the normalized mapping, or nil before normalization.
func (a *Attributes) Values() map[string]string {
	return a.values
}

// Entries returns the raw list form, or nil after normalization.
func (a *Attributes) Entries() []AttributeEntry {
	return a.entries
}

// normalize folds the entry list into a mapping. Empty keys are dropped and
// duplicate keys resolve last-write-wins.
func (a *Attributes) normalize() {
	if a.values != nil {
		return
	}
	values := make(map[string]string, len(a.entries))
	for _, entry := range a.entries {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		values[key] = entry.Value
	}
	a.entries = nil
	a.values = values
}

// UnmarshalJSON accepts either a JSON array of entries or a JSON object
// mapping keys to values.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*a = Attributes{}
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var values map[string]string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*a = Attributes{values: values}
		return nil
	}
	var entries []AttributeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*a = Attributes{entries: entries}
	return nil
}

// MarshalJSON emits the mapping when normalized, the entry list otherwise.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a.values != nil {
		return json.Marshal(a.values)
	}
	if a.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.entries)
}
