package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func bmwIntake() Mod {
	return Mod{
		ID:          "dubhaus:123",
		StoreID:     "dubhaus",
		Title:       "MST Performance Intake BMW F20 F30",
		Vendor:      "MST Performance",
		ProductType: "Intake",
		Tags:        []string{"BMW", "F20", "N20", "Cold Air Intake"},
	}
}

func TestNormalizeMatchText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "BMW", want: "bmw"},
		{name: "punctuation becomes space", in: "Hi-Torque/Performance", want: "hi torque performance"},
		{name: "collapses runs", in: "  N20   turbo  ", want: "n20 turbo"},
		{name: "keeps digits", in: "370Z", want: "370z"},
		{name: "empty", in: "!!!", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizeMatchText(tc.in))
		})
	}
}

func TestFilterIsZero(t *testing.T) {
	t.Parallel()

	require.True(t, Filter{}.IsZero())
	require.True(t, Filter{Make: "   ", Model: "\t"}.IsZero())
	require.False(t, Filter{Engine: "n20"}.IsZero())
}

func TestFilterMatches(t *testing.T) {
	t.Parallel()

	mod := bmwIntake()

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "make only", filter: Filter{Make: "bmw"}, want: true},
		{name: "make case insensitive", filter: Filter{Make: "BMW"}, want: true},
		{name: "all three", filter: Filter{Make: "bmw", Model: "f20", Engine: "n20"}, want: true},
		{name: "model from title", filter: Filter{Model: "F30"}, want: true},
		{name: "wrong model", filter: Filter{Make: "bmw", Model: "e46"}, want: false},
		{name: "wrong make fails whole query", filter: Filter{Make: "toyota", Model: "f20"}, want: false},
		{name: "vendor text participates", filter: Filter{Make: "mst"}, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, tc.filter.Matches(mod))
		})
	}
}

func TestFilterMatchesCompactEngine(t *testing.T) {
	t.Parallel()

	spaced := bmwIntake()
	spaced.Tags = []string{"N 20"}

	// Spaced query finds the unspaced tag and the reverse.
	require.True(t, Filter{Engine: "N20"}.Matches(spaced))
	require.True(t, Filter{Engine: "n 20"}.Matches(bmwIntake()))
}

func TestSearchText(t *testing.T) {
	t.Parallel()

	mod := Mod{
		Title:       "Catback Exhaust",
		Vendor:      "XForce",
		ProductType: "Exhaust",
		Tags:        []string{"Subaru, WRX", ""},
	}
	require.Equal(t, "catback exhaust xforce exhaust subaru wrx", SearchText(mod))
	require.Equal(t, "catbackexhaustxforceexhaustsubaruwrx", CompactSearchText(mod))
}
