package scheduler

import "sort"

// Reservation is the minimal view of a booking needed for conflict detection.
type Reservation struct {
	ID       string
	RoomID   string
	Interval Interval
	Status   Status
}

// Conflict details an overlapping reservation that blocks a candidate.
type Conflict struct {
	WithReservationID string
	RoomID            string
	Interval          Interval
}

// DetectConflicts returns every confirmed reservation in the candidate's room
// that overlaps the candidate, ordered by start time and then ID. A reservation
// sharing the candidate's ID is ignored so an edit never conflicts with itself.
func DetectConflicts(existing []Reservation, candidate Reservation) []Conflict {
	var conflicts []Conflict
	for _, reservation := range existing {
		if reservation.Status != StatusConfirmed {
			continue
		}
		if candidate.ID != "" && reservation.ID == candidate.ID {
			continue
		}
		if reservation.RoomID != candidate.RoomID {
			continue
		}
		if !reservation.Interval.Overlaps(candidate.Interval) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithReservationID: reservation.ID,
			RoomID:            reservation.RoomID,
			Interval:          reservation.Interval,
		})
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Interval.Start.Equal(conflicts[j].Interval.Start) {
			return conflicts[i].WithReservationID < conflicts[j].WithReservationID
		}
		return conflicts[i].Interval.Start.Before(conflicts[j].Interval.Start)
	})

	return conflicts
}

// FindConflict returns the first conflict reported by DetectConflicts.
func FindConflict(existing []Reservation, candidate Reservation) (Conflict, bool) {
	conflicts := DetectConflicts(existing, candidate)
	if len(conflicts) == 0 {
		return Conflict{}, false
	}
	return conflicts[0], true
}
