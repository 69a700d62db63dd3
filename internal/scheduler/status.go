package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Status is the persisted lifecycle state of a booking.
type Status string

const (
	// StatusConfirmed is the initial state of every booking.
	StatusConfirmed Status = "confirmed"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a stored value into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusCancelled:
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("scheduler: unknown booking status %q", value)
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	return from == StatusConfirmed && to == StatusCancelled
}

// DisplayStatus is the read-time classification of a booking. It is never stored.
type DisplayStatus string

const (
	DisplayUpcoming   DisplayStatus = "upcoming"
	DisplayInProgress DisplayStatus = "in_progress"
	DisplayPast       DisplayStatus = "past"
	DisplayCancelled  DisplayStatus = "cancelled"
)

// DeriveDisplayStatus classifies a booking relative to now. It is the single
// source of truth for every listing, filter, and response.
func DeriveDisplayStatus(interval Interval, status Status, now time.Time) DisplayStatus {
	if status == StatusCancelled {
		return DisplayCancelled
	}
	if !interval.End.After(now) {
		return DisplayPast
	}
	if !interval.Start.After(now) {
		return DisplayInProgress
	}
	return DisplayUpcoming
}

// ParseDisplayStatus accepts the wire names plus a few common spellings.
func ParseDisplayStatus(value string) (DisplayStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "upcoming":
		return DisplayUpcoming, nil
	case "in_progress", "in-progress", "inprogress", "ongoing":
		return DisplayInProgress, nil
	case "past":
		return DisplayPast, nil
	case "cancelled", "canceled":
		return DisplayCancelled, nil
	}
	return "", fmt.Errorf("scheduler: unknown display status %q", value)
}
