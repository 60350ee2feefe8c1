package directory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// seedFile mirrors the declaration files the fiduciary tooling pushes: one
// file per organisation, applications each carrying their collection points.
type seedFile struct {
	Version        string `yaml:"version"`
	OrganisationID string `yaml:"organisation_id"`
	Applications   []struct {
		ApplicationID    string            `yaml:"application_id"`
		CollectionPoints []CollectionPoint `yaml:"collection_points"`
	} `yaml:"applications"`
}

// LoadSeed parses a YAML declaration file into collection points, stamping
// each with its owning organisation and application ids.
func LoadSeed(path string) ([]CollectionPoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed parses YAML declaration bytes into collection points.
func ParseSeed(raw []byte) ([]CollectionPoint, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	var points []CollectionPoint
	for _, app := range f.Applications {
		for _, cp := range app.CollectionPoints {
			if cp.ID == "" {
				return nil, fmt.Errorf("collection point without cp_id under application %s", app.ApplicationID)
			}
			cp.OrgID = f.OrganisationID
			cp.ApplicationID = app.ApplicationID
			if cp.Status == "" {
				cp.Status = "active"
			}
			points = append(points, cp)
		}
	}
	return points, nil
}
