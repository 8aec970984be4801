package zone

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"homeguard/internal/detect"
	"homeguard/pkg/log"
)

const trackHistoryCap = 50

type ViolationType string

const (
	ViolationEntry    ViolationType = "zone_entry"
	ViolationOverstay ViolationType = "zone_stay_timeout"
)

type Violation struct {
	Type      ViolationType `json:"type"`
	SubjectID string        `json:"subjectId"`
	ZoneID    string        `json:"zoneId"`
	ZoneName  string        `json:"zoneName"`
	Message   string        `json:"message"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Dwell     time.Duration `json:"dwell"`
	Timestamp time.Time     `json:"timestamp"`
}

type sample struct {
	point orb.Point
	at    time.Time
}

type track struct {
	firstSeen time.Time
	lastSeen  time.Time
	history   []sample
}

func (t *track) observe(p orb.Point, at time.Time) {
	t.lastSeen = at
	t.history = append(t.history, sample{point: p, at: at})
	if len(t.history) > trackHistoryCap {
		t.history = t.history[len(t.history)-trackHistoryCap:]
	}
}

type occupancy struct {
	subjectID string
	zoneID    string
	enterTime time.Time
	notified  bool
}

// Tracker keeps per-subject presence state against the current zone set and
// turns detection batches into entry/overstay violations. All state is
// in-memory and rebuilt from the live stream after a restart.
type Tracker struct {
	zones          atomic.Pointer[[]*Zone]
	absenceTimeout time.Duration

	mu          sync.Mutex
	tracks      map[string]*track
	occupancies map[string]*occupancy

	logger *logrus.Entry
}

func NewTracker(absenceTimeout time.Duration) *Tracker {
	t := &Tracker{
		absenceTimeout: absenceTimeout,
		tracks:         make(map[string]*track),
		occupancies:    make(map[string]*occupancy),
		logger:         log.NewLogger().WithField("component", "tracker"),
	}
	empty := []*Zone{}
	t.zones.Store(&empty)
	return t
}

// SetZones swaps the active zone set. Readers always see either the old set
// or the new one, never a mix.
func (t *Tracker) SetZones(zones []*Zone) {
	t.zones.Store(&zones)
	t.logger.Infof("loaded %d zones", len(zones))
}

func (t *Tracker) Zones() []*Zone {
	return *t.zones.Load()
}

func occupancyKey(subjectID, zoneID string) string {
	return subjectID + "/" + zoneID
}

// Observe processes one detection batch taken at time now. It returns the
// violations this batch produced: an entry violation once per outside→inside
// transition and an overstay violation at most once per continuous stay.
func (t *Tracker) Observe(detections []detect.Detection, now time.Time) []Violation {
	zones := t.Zones()

	t.mu.Lock()
	defer t.mu.Unlock()

	var violations []Violation

	seen := make(map[string]bool, len(detections))
	for _, det := range detections {
		subjectID := det.Identity.SubjectKey(det.Box)
		seen[subjectID] = true

		cx, cy := det.Box.Center()
		point := orb.Point{cx, cy}

		tr, ok := t.tracks[subjectID]
		if !ok {
			tr = &track{firstSeen: now}
			t.tracks[subjectID] = tr
		}
		tr.observe(point, now)

		for _, z := range zones {
			key := occupancyKey(subjectID, z.ID)
			inside := z.Contains(cx, cy)

			if !inside {
				if occ, held := t.occupancies[key]; held {
					t.logger.Infof("subject %s left zone %s after %v", subjectID, z.Name, now.Sub(occ.enterTime))
					delete(t.occupancies, key)
				}
				continue
			}

			occ, held := t.occupancies[key]
			if !held {
				occ = &occupancy{
					subjectID: subjectID,
					zoneID:    z.ID,
					enterTime: now,
				}
				t.occupancies[key] = occ
				violations = append(violations, Violation{
					Type:      ViolationEntry,
					SubjectID: subjectID,
					ZoneID:    z.ID,
					ZoneName:  z.Name,
					Message:   fmt.Sprintf("subject entered zone %s", z.Name),
					X:         cx,
					Y:         cy,
					Timestamp: now,
				})
			}

			dwell := now.Sub(occ.enterTime)
			if dwell >= z.DwellThreshold && !occ.notified {
				occ.notified = true
				violations = append(violations, Violation{
					Type:      ViolationOverstay,
					SubjectID: subjectID,
					ZoneID:    z.ID,
					ZoneName:  z.Name,
					Message:   fmt.Sprintf("subject stayed in zone %s for %.1fs", z.Name, dwell.Seconds()),
					X:         cx,
					Y:         cy,
					Dwell:     dwell,
					Timestamp: now,
				})
			}
		}
	}

	t.prune(seen, now)

	return violations
}

// prune drops tracks and occupancies of subjects that have not been observed
// for the absence timeout. Caller holds t.mu.
func (t *Tracker) prune(seen map[string]bool, now time.Time) {
	stale := make(map[string]bool)
	for subjectID, tr := range t.tracks {
		if seen[subjectID] {
			continue
		}
		if now.Sub(tr.lastSeen) >= t.absenceTimeout {
			stale[subjectID] = true
			delete(t.tracks, subjectID)
			t.logger.Debugf("pruned absent subject %s", subjectID)
		}
	}
	for key, occ := range t.occupancies {
		if stale[occ.subjectID] {
			delete(t.occupancies, key)
		}
	}
}

type ZoneInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DwellSeconds float64 `json:"dwellSeconds"`
}

type Statistics struct {
	ZoneCount        int        `json:"zoneCount"`
	ActiveViolations int        `json:"activeViolations"`
	TrackedSubjects  int        `json:"trackedSubjects"`
	Zones            []ZoneInfo `json:"zones"`
}

func (t *Tracker) Stats() Statistics {
	zones := t.Zones()

	t.mu.Lock()
	defer t.mu.Unlock()

	infos := make([]ZoneInfo, 0, len(zones))
	for _, z := range zones {
		infos = append(infos, ZoneInfo{
			ID:           z.ID,
			Name:         z.Name,
			DwellSeconds: z.DwellThreshold.Seconds(),
		})
	}
	return Statistics{
		ZoneCount:        len(zones),
		ActiveViolations: len(t.occupancies),
		TrackedSubjects:  len(t.tracks),
		Zones:            infos,
	}
}
