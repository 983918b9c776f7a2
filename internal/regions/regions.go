// Package regions holds the GEOID reference universe. The core treats it as
// an external collaborator: a lookup table populated by a one-time ingestion
// step, never mutated by set operations. Spatial and attribute querying lives
// outside this service entirely; only opaque GEOID strings cross in.
package regions

// Region is one row of the reference table.
type Region struct {
	GEOID     string `json:"geoid"`
	Name      string `json:"name"`
	StateFIPS string `json:"state_fips"`
}

// Preset is a predefined regional set: data, not code. Presets are seeded
// into real sets through the store, so they version like any other set.
type Preset struct {
	Key         string
	Description string
	GEOIDs      []string
}

// Presets are the predefined regional groupings offered at seed time.
var Presets = []Preset{
	{
		Key:         "south_florida",
		Description: "South Florida tri-county area",
		GEOIDs:      []string{"12086", "12011", "12099"},
	},
	{
		Key:         "tampa_bay",
		Description: "Tampa Bay metro counties",
		GEOIDs:      []string{"12057", "12103", "12101", "12053"},
	},
	{
		Key:         "central_florida",
		Description: "Orlando metro counties",
		GEOIDs:      []string{"12095", "12097", "12117", "12069"},
	},
	{
		Key:         "georgia_coast",
		Description: "Georgia coastal counties",
		GEOIDs:      []string{"13051", "13179", "13191", "13127", "13039"},
	},
}

// PresetByKey returns the preset with the given key, if any.
func PresetByKey(key string) (Preset, bool) {
	for _, p := range Presets {
		if p.Key == key {
			return p, true
		}
	}
	return Preset{}, false
}
