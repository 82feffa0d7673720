// Package history simulates a 30-day location trace around a home coordinate
// and scores how consistently that trace stays at home.
package history

import (
	"fmt"
	"slices"
	"time"

	"trustline/internal/geo"
	"trustline/internal/noise"
	"trustline/internal/verification/models"
)

const (
	// TraceDays is the number of daily samples in a generated trace.
	TraceDays = 30

	nightAtHomeChance   = 0.4
	weekendAtHomeChance = 0.8
	weekdayAtHomeChance = 0.5

	homeJitterDeg = 0.0005
	minAwayKm     = 0.5
	maxAwayKm     = 20.0
)

var (
	homeActivities = []models.Activity{models.ActivityHome, models.ActivitySleeping}
	awayActivities = []models.Activity{
		models.ActivityWork,
		models.ActivityShopping,
		models.ActivityRestaurant,
		models.ActivityGym,
		models.ActivityTravel,
	}
	awayStreets = []string{"Main St", "Oak Ave", "Park Rd", "First St"}
)

// Simulator generates synthetic traces. It draws every random value from src.
type Simulator struct {
	src noise.Source
}

// NewSimulator returns a simulator backed by src.
func NewSimulator(src noise.Source) *Simulator {
	return &Simulator{src: src}
}

// Generate produces one sample per calendar day, today back to day 29, sorted
// newest first. Days start at UTC midnight.
func (s *Simulator) Generate(now time.Time, home geo.Coordinate, street, city string) []models.LocationHistoryEntry {
	today := now.UTC().Truncate(24 * time.Hour)
	entries := make([]models.LocationHistoryEntry, 0, TraceDays)

	for i := range TraceDays {
		dayStart := today.AddDate(0, 0, -i)
		if s.atHome(dayStart) {
			entries = append(entries, s.homeEntry(dayStart, home, street, city))
		} else {
			entries = append(entries, s.awayEntry(dayStart, home, city))
		}
	}

	SortNewestFirst(entries)
	return entries
}

// atHome draws the night chance first and only falls through to the
// weekday/weekend draw when the night draw fails.
func (s *Simulator) atHome(day time.Time) bool {
	if noise.Chance(s.src, nightAtHomeChance) {
		return true
	}
	if isWeekend(day) {
		return noise.Chance(s.src, weekendAtHomeChance)
	}
	return noise.Chance(s.src, weekdayAtHomeChance)
}

func (s *Simulator) homeEntry(dayStart time.Time, home geo.Coordinate, street, city string) models.LocationHistoryEntry {
	coord := noise.Jitter(s.src, home, homeJitterDeg)
	return models.LocationHistoryEntry{
		Timestamp:  s.timeWithin(dayStart),
		Coordinate: coord,
		Address:    fmt.Sprintf("%d %s, %s", s.houseNumber(), street, city),
		Activity:   noise.Pick(s.src, homeActivities),
	}
}

func (s *Simulator) awayEntry(dayStart time.Time, home geo.Coordinate, city string) models.LocationHistoryEntry {
	activity := noise.Pick(s.src, awayActivities)
	distance := noise.Uniform(s.src, minAwayKm, maxAwayKm)
	bearing := noise.Uniform(s.src, 0, 360)
	return models.LocationHistoryEntry{
		Timestamp:  s.timeWithin(dayStart),
		Coordinate: geo.Destination(home, bearing, distance),
		Address:    fmt.Sprintf("%d %s, %s", s.houseNumber(), noise.Pick(s.src, awayStreets), city),
		Activity:   activity,
	}
}

func (s *Simulator) timeWithin(dayStart time.Time) time.Time {
	return dayStart.Add(time.Duration(s.src.Float64() * float64(24*time.Hour)))
}

func (s *Simulator) houseNumber() int {
	return s.src.IntN(999) + 1
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// SortNewestFirst orders entries by descending timestamp, keeping the relative
// order of equal timestamps.
func SortNewestFirst(entries []models.LocationHistoryEntry) {
	slices.SortStableFunc(entries, func(a, b models.LocationHistoryEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
