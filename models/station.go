package models

// Station is a transit stop used both as a search filter and as the reference
// point for distance-based notification filtering.
type Station struct {
	ID   string  `yaml:"id" json:"id"`
	Name string  `yaml:"name" json:"name"`
	Line string  `yaml:"line" json:"line"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lng  float64 `yaml:"lng" json:"lng"`
}
