package places

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePlaceID(t *testing.T) {
	testCases := []struct {
		description string
		given       string
		expected    string
	}{
		{
			description: "Raw id untouched",
			given:       "ChIJabc",
			expected:    "ChIJabc",
		},
		{
			description: "Resource-name prefix stripped",
			given:       "places/ChIJabc",
			expected:    "ChIJabc",
		},
		{
			description: "Prefix stripped only once from the front",
			given:       "places/places/ChIJabc",
			expected:    "places/ChIJabc",
		},
		{
			description: "Empty id",
			given:       "",
			expected:    "",
		},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, NormalizePlaceID(test.given), test.description)
	}
}

func TestSortedFieldStringOrderIndependent(t *testing.T) {
	assert.Equal(t, SortedFieldString([]string{"b", "a"}), SortedFieldString([]string{"a", "b"}))
	assert.Equal(t, "a,b", SortedFieldString([]string{"b", "a"}))

	original := []string{"b", "a"}
	SortedFieldString(original)
	assert.Equal(t, []string{"b", "a"}, original, "the caller's slice must not be reordered")
}

func TestIsDefaultFieldMask(t *testing.T) {
	assert.True(t, IsDefaultFieldMask(DefaultFieldMask()))
	assert.True(t, IsDefaultFieldMask([]string{"location", "id", "formattedAddress", "displayName"}))
	assert.False(t, IsDefaultFieldMask([]string{"id"}))
	assert.False(t, IsDefaultFieldMask([]string{"id", "displayName", "formattedAddress", "rating"}))
}

func TestDefaultFieldMaskIsACopy(t *testing.T) {
	mask := DefaultFieldMask()
	mask[0] = "mutated"
	assert.Equal(t, "id", DefaultFieldMask()[0])
}

func TestSearchFieldMaskPrefixesPlaces(t *testing.T) {
	assert.Equal(t, "places.id,places.displayName", searchFieldMask([]string{"id", "displayName"}))
}

func TestLoadFieldMaskPresets(t *testing.T) {
	dir, err := ioutil.TempDir("", "presets")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "field-masks.yaml")
	contents := "basic:\n  - id\n  - displayName\ncontact:\n  - id\n  - internationalPhoneNumber\n  - websiteUri\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))

	presets, err := LoadFieldMaskPresets(path)
	require.NoError(t, err)

	basic, ok := presets.Resolve("basic")
	assert.True(t, ok)
	assert.Equal(t, []string{"id", "displayName"}, basic)

	_, ok = presets.Resolve("atmosphere")
	assert.False(t, ok, "unknown preset names must not resolve")
}

func TestLoadFieldMaskPresetsEmptyPath(t *testing.T) {
	presets, err := LoadFieldMaskPresets("")
	require.NoError(t, err)
	assert.Empty(t, presets)
}

func TestLoadFieldMaskPresetsRejectsEmptyList(t *testing.T) {
	dir, err := ioutil.TempDir("", "presets")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "field-masks.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("empty: []\n"), 0644))

	_, err = LoadFieldMaskPresets(path)
	assert.Error(t, err)
}
