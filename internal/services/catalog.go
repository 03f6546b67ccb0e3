package services

import (
	"slices"
	"strings"

	"luckydraw/internal/models"
)

// ParticipantStore keeps imported participants in import order.
type ParticipantStore struct {
	list  []models.Participant
	index map[string]int
}

// NewParticipantStore creates an empty store.
func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{index: make(map[string]int)}
}

// Add appends a participant. Ids are unique; a repeated id is rejected.
func (s *ParticipantStore) Add(p models.Participant) error {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return ErrInvalidParticipant
	}
	if _, exists := s.index[p.ID]; exists {
		return ErrDuplicateParticipant
	}
	s.index[p.ID] = len(s.list)
	s.list = append(s.list, p)
	return nil
}

// Get looks a participant up by id.
func (s *ParticipantStore) Get(id string) (models.Participant, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.Participant{}, false
	}
	return s.list[i], true
}

// List returns all participants in import order.
func (s *ParticipantStore) List() []models.Participant {
	return slices.Clone(s.list)
}

// Len returns the number of participants.
func (s *ParticipantStore) Len() int {
	return len(s.list)
}

// Eligible returns the participants who have not won anything yet.
func (s *ParticipantStore) Eligible(ledger *Ledger) []models.Participant {
	out := make([]models.Participant, 0, len(s.list))
	for _, p := range s.list {
		if !ledger.HasWon(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// Reset removes every participant.
func (s *ParticipantStore) Reset() {
	s.list = nil
	s.index = make(map[string]int)
}

// PrizeCatalog keeps prize definitions in creation order.
type PrizeCatalog struct {
	prizes []models.Prize
}

// NewPrizeCatalog creates an empty catalog.
func NewPrizeCatalog() *PrizeCatalog {
	return &PrizeCatalog{}
}

// Add validates and stores a prize.
func (c *PrizeCatalog) Add(p models.Prize) error {
	if strings.TrimSpace(p.Name) == "" || p.Count <= 0 || p.ID == "" {
		return ErrInvalidPrize
	}
	if _, ok := c.Get(p.ID); ok {
		return ErrInvalidPrize
	}
	c.prizes = append(c.prizes, p)
	return nil
}

// Get looks a prize up by id.
func (c *PrizeCatalog) Get(id string) (models.Prize, bool) {
	for _, p := range c.prizes {
		if p.ID == id {
			return p, true
		}
	}
	return models.Prize{}, false
}

// Delete removes a prize and reports whether it existed.
func (c *PrizeCatalog) Delete(id string) bool {
	for i, p := range c.prizes {
		if p.ID == id {
			c.prizes = slices.Delete(c.prizes, i, i+1)
			return true
		}
	}
	return false
}

// List returns the prizes ordered by level, grand prize first.
func (c *PrizeCatalog) List() []models.Prize {
	out := slices.Clone(c.prizes)
	slices.SortStableFunc(out, func(a, b models.Prize) int {
		return a.Level - b.Level
	})
	return out
}

// Len returns the number of prizes.
func (c *PrizeCatalog) Len() int {
	return len(c.prizes)
}

// Reset removes every prize.
func (c *PrizeCatalog) Reset() {
	c.prizes = nil
}

// RuleSet holds override rules in insertion order.
type RuleSet struct {
	rules []models.OverrideRule
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Add stores a rule. It returns false when the same pair already exists.
func (r *RuleSet) Add(rule models.OverrideRule) bool {
	if slices.Contains(r.rules, rule) {
		return false
	}
	r.rules = append(r.rules, rule)
	return true
}

// Remove deletes the pair and reports whether it was present.
func (r *RuleSet) Remove(prizeID, participantID string) bool {
	before := len(r.rules)
	r.rules = slices.DeleteFunc(r.rules, func(rule models.OverrideRule) bool {
		return rule.PrizeID == prizeID && rule.ParticipantID == participantID
	})
	return len(r.rules) != before
}

// List returns the rules in insertion order.
func (r *RuleSet) List() []models.OverrideRule {
	return slices.Clone(r.rules)
}

// Reset removes every rule.
func (r *RuleSet) Reset() {
	r.rules = nil
}
