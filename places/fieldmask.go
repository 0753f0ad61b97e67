package places

import (
	"fmt"
	"io/ioutil"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// defaultFieldMask is the field list used when a caller doesn't ask for anything
// specific, and the known-good list the fallback retry degrades to when the provider
// rejects a caller-supplied mask. Single source of truth for both the single and
// batched details paths.
var defaultFieldMask = []string{"id", "displayName", "formattedAddress", "location"}

// DefaultFieldMask returns a copy of the default field list, so callers can't
// mutate the shared default.
func DefaultFieldMask() []string {
	mask := make([]string, len(defaultFieldMask))
	copy(mask, defaultFieldMask)
	return mask
}

// IsDefaultFieldMask returns true if fields requests exactly the default list,
// in any order. The fallback retry is skipped when this is true, since retrying
// with the same mask can't produce a different answer.
func IsDefaultFieldMask(fields []string) bool {
	if len(fields) != len(defaultFieldMask) {
		return false
	}
	return SortedFieldString(fields) == SortedFieldString(defaultFieldMask)
}

// SortedFieldString joins a copy of fields in sorted order. Cache keys are derived
// from this, so "[a,b]" and "[b,a]" always land on the same entry.
func SortedFieldString(fields []string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// NormalizePlaceID strips the provider's resource-name prefix, so "places/ChIJabc"
// and "ChIJabc" refer to the same place in cache keys and outbound URLs.
func NormalizePlaceID(placeID string) string {
	return strings.TrimPrefix(placeID, "places/")
}

// searchFieldMask prefixes each field path for the search response shape, where
// place fields live under the "places" array.
func searchFieldMask(fields []string) string {
	prefixed := make([]string, len(fields))
	for i, field := range fields {
		prefixed[i] = "places." + field
	}
	return strings.Join(prefixed, ",")
}

// FieldMaskPresets maps a preset name (e.g. "basic") to the field list it stands for.
// Loaded once at startup from a yaml file.
type FieldMaskPresets map[string][]string

// LoadFieldMaskPresets reads the preset definitions from the given yaml file.
// A missing or malformed file fails startup; an empty path means no presets.
func LoadFieldMaskPresets(path string) (FieldMaskPresets, error) {
	if path == "" {
		return FieldMaskPresets{}, nil
	}
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading field mask presets from %s: %v", path, err)
	}
	presets := FieldMaskPresets{}
	if err := yaml.Unmarshal(contents, &presets); err != nil {
		return nil, fmt.Errorf("error parsing field mask presets in %s: %v", path, err)
	}
	for name, fields := range presets {
		if len(fields) == 0 {
			return nil, fmt.Errorf("field mask preset %s in %s has no fields", name, path)
		}
	}
	return presets, nil
}

// Resolve returns the field list for a preset name, or false if no such preset exists.
func (p FieldMaskPresets) Resolve(name string) ([]string, bool) {
	fields, ok := p[name]
	if !ok {
		return nil, false
	}
	mask := make([]string, len(fields))
	copy(mask, fields)
	return mask, true
}
