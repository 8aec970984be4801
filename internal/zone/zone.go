package zone

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"homeguard/internal/config"
	"homeguard/pkg/log"
)

// Zone is a geofenced polygon with an overstay threshold. Zones are immutable
// once built; reloads swap the whole set.
type Zone struct {
	ID             string
	Name           string
	Ring           orb.Ring
	DwellThreshold time.Duration
}

// Contains reports whether the point is inside the zone polygon. Containment
// is ray-casting via orb/planar; points exactly on the boundary count as
// inside.
func (z *Zone) Contains(x, y float64) bool {
	return planar.RingContains(z.Ring, orb.Point{x, y})
}

type pointSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type zoneSpec struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	DwellSeconds float64     `yaml:"dwellSeconds"`
	Points       []pointSpec `yaml:"points"`
}

type zoneFile struct {
	Zones []zoneSpec `yaml:"zones"`
}

// LoadZoneFile reads zone definitions from a YAML file. A malformed zone is
// skipped with a warning; the rest of the set still loads.
func LoadZoneFile(path string) ([]*Zone, error) {
	var spec zoneFile
	if err := config.LoadYAMLConfig(path, &spec); err != nil {
		return nil, fmt.Errorf("load zone file: %w", err)
	}

	logger := log.NewLogger().WithField("component", "zone")

	zones := make([]*Zone, 0, len(spec.Zones))
	for _, zs := range spec.Zones {
		z, err := buildZone(zs)
		if err != nil {
			logger.WithError(err).Warnf("skipping zone %q", zs.ID)
			continue
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func buildZone(zs zoneSpec) (*Zone, error) {
	if zs.ID == "" {
		return nil, fmt.Errorf("zone id is empty")
	}
	if len(zs.Points) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 points, got %d", len(zs.Points))
	}
	if zs.DwellSeconds <= 0 {
		return nil, fmt.Errorf("dwellSeconds must be positive, got %v", zs.DwellSeconds)
	}

	ring := make(orb.Ring, 0, len(zs.Points)+1)
	for _, p := range zs.Points {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}

	return &Zone{
		ID:             zs.ID,
		Name:           zs.Name,
		Ring:           ring,
		DwellThreshold: time.Duration(zs.DwellSeconds * float64(time.Second)),
	}, nil
}
