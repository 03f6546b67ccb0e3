package services

import (
	"fmt"

	"luckydraw/internal/models"
)

// Ledger is the append-only log of committed winners.
type Ledger struct {
	records  []models.WinnerRecord
	winners  map[string]string // participantID -> prizeID
	perPrize map[string]int
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		winners:  make(map[string]string),
		perPrize: make(map[string]int),
	}
}

// HasWon reports whether the participant won any prize.
func (l *Ledger) HasWon(participantID string) bool {
	_, ok := l.winners[participantID]
	return ok
}

// CountFor returns how many winners were committed for a prize.
func (l *Ledger) CountFor(prizeID string) int {
	return l.perPrize[prizeID]
}

// RemainingSlots returns how many winners the prize can still take.
func (l *Ledger) RemainingSlots(prize models.Prize) int {
	return prize.Count - l.perPrize[prize.ID]
}

// WinnersFor returns the prize's winners in commit order.
func (l *Ledger) WinnersFor(prizeID string) []models.WinnerRecord {
	out := make([]models.WinnerRecord, 0, l.perPrize[prizeID])
	for _, r := range l.records {
		if r.PrizeID == prizeID {
			out = append(out, r)
		}
	}
	return out
}

// All returns every record in commit order.
func (l *Ledger) All() []models.WinnerRecord {
	out := make([]models.WinnerRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of committed records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Append commits a batch of records for prize. The batch is applied entirely
// or not at all.
func (l *Ledger) Append(prize models.Prize, records []models.WinnerRecord) error {
	if len(records) > l.RemainingSlots(prize) {
		return fmt.Errorf("%w: %d records, %d slots left for %q", ErrQuotaExceeded, len(records), l.RemainingSlots(prize), prize.Name)
	}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.PrizeID != prize.ID {
			return fmt.Errorf("record %s targets prize %s, not %s", r.ID, r.PrizeID, prize.ID)
		}
		if l.HasWon(r.Participant.ID) || seen[r.Participant.ID] {
			return fmt.Errorf("%w: %s", ErrAlreadyWon, r.Participant.ID)
		}
		seen[r.Participant.ID] = true
	}

	for _, r := range records {
		l.records = append(l.records, r)
		l.winners[r.Participant.ID] = r.PrizeID
		l.perPrize[r.PrizeID]++
	}
	return nil
}

// ResetAll drops every record.
func (l *Ledger) ResetAll() {
	l.records = nil
	l.winners = make(map[string]string)
	l.perPrize = make(map[string]int)
}
