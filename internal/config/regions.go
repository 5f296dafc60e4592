package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/signal.report/internal/geometry"
)

// Region kinds. Kinds only document the table; matching is purely by order.
const (
	RegionLane         = "lane"
	RegionIntersection = "intersection"
)

//go:embed regions.default.json
var defaultRegionsJSON []byte

// RegionConfig is one named polygon in reference-resolution pixels.
type RegionConfig struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind,omitempty"`
	Points [][2]int `json:"points"`
}

// DefaultRegions returns the built-in region table for the survey
// intersection: 25 approach lanes followed by 2 junction boxes, in the survey
// video's native 1920x1080 pixels.
func DefaultRegions() ([]RegionConfig, error) {
	var regions []RegionConfig
	if err := json.Unmarshal(defaultRegionsJSON, &regions); err != nil {
		return nil, fmt.Errorf("failed to parse embedded region table: %w", err)
	}
	return regions, nil
}

func validateRegions(regions []RegionConfig) error {
	seen := make(map[string]bool, len(regions))
	for i, r := range regions {
		if r.Name == "" {
			return fmt.Errorf("video.regions[%d] has no name", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate region name %q", r.Name)
		}
		seen[r.Name] = true
		if len(r.Points) < 3 {
			return fmt.Errorf("region %q needs at least 3 points, got %d", r.Name, len(r.Points))
		}
		switch r.Kind {
		case "", RegionLane, RegionIntersection:
		default:
			return fmt.Errorf("region %q has unknown kind %q", r.Name, r.Kind)
		}
	}
	return nil
}

// GetRegions returns the configured regions in match order, or the built-in
// table when none are configured.
func (c *Config) GetRegions() ([]geometry.Region, error) {
	src := c.Video.Regions
	if len(src) == 0 {
		var err error
		if src, err = DefaultRegions(); err != nil {
			return nil, err
		}
	}
	regions := make([]geometry.Region, len(src))
	for i, r := range src {
		pts := make([]geometry.Point, len(r.Points))
		for j, p := range r.Points {
			pts[j] = geometry.Point{X: p[0], Y: p[1]}
		}
		regions[i] = geometry.Region{Name: r.Name, Points: pts}
	}
	return regions, nil
}
