package models

import "time"

// DefaultDepartment is used for participants imported without a department.
const DefaultDepartment = "General"

// Participant represents a person entering the draw.
// Participants are never mutated after import.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}

// Prize represents a single prize category in the draw.
// Count is the total number of winner slots and Level the display priority,
// where 1 is the grand prize.
type Prize struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
	Level int    `json:"level"`
	Image string `json:"image,omitempty"`
}

// OverrideRule forces a participant to win a prize, bypassing the random draw.
type OverrideRule struct {
	PrizeID       string `json:"prizeId"`
	ParticipantID string `json:"participantId"`
}

// WinnerRecord stores the outcome of a committed draw,
// linking a copy of the winner to a specific prize.
type WinnerRecord struct {
	ID          string      `json:"id"`
	Participant Participant `json:"participant"`
	PrizeID     string      `json:"prizeId"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PrizeStatus is a prize along with how many of its slots are taken.
type PrizeStatus struct {
	Prize
	Committed int  `json:"committed"`
	Remaining int  `json:"remaining"`
	Complete  bool `json:"complete"`
}

// PrizeWinners groups the committed winners of one prize for history views.
type PrizeWinners struct {
	Prize   Prize          `json:"prize"`
	Winners []WinnerRecord `json:"winners"`
}
