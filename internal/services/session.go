package services

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"luckydraw/internal/models"
)

// DrawState is the phase of the draw controller.
type DrawState int

const (
	// StateIdle means no draw is running and nothing awaits commit.
	StateIdle DrawState = iota
	// StateRunning means the selection animation is on screen.
	StateRunning
	// StatePending means a batch was drawn and awaits commit.
	StatePending
)

func (s DrawState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePending:
		return "pending"
	default:
		return fmt.Sprintf("DrawState(%d)", int(s))
	}
}

// MarshalText lets the state appear by name in JSON.
func (s DrawState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is what display clients need to render the draw screen.
type Snapshot struct {
	State        DrawState             `json:"state"`
	Prize        *models.PrizeStatus   `json:"prize,omitempty"`
	DrawCount    int                   `json:"drawCount"`
	Eligible     int                   `json:"eligible"`
	Participants int                   `json:"participants"`
	Pending      []models.Participant  `json:"pending,omitempty"`
	Winners      []models.WinnerRecord `json:"winners,omitempty"`
}

// SessionOption configures a DrawSession.
type SessionOption func(*DrawSession)

// WithRandom sets the random source used by the winner selector.
func WithRandom(r Random) SessionOption {
	return func(s *DrawSession) { s.rng = r }
}

// WithClock sets the clock used to stamp winner records.
func WithClock(now func() time.Time) SessionOption {
	return func(s *DrawSession) { s.now = now }
}

// WithRecorder sets where draw activity is reported.
func WithRecorder(r Recorder) SessionOption {
	return func(s *DrawSession) {
		if r != nil {
			s.recorder = r
		}
	}
}

// DrawSession owns one event's participants, prizes, override rules and
// winner ledger, and is the only way to change them.
type DrawSession struct {
	mu sync.Mutex

	participants *ParticipantStore
	prizes       *PrizeCatalog
	rules        *RuleSet
	ledger       *Ledger

	state    DrawState
	selected string
	pending  []models.Participant

	rng      Random
	now      func() time.Time
	recorder Recorder
}

// NewDrawSession creates an empty, idle session.
func NewDrawSession(opts ...SessionOption) *DrawSession {
	s := &DrawSession{
		participants: NewParticipantStore(),
		prizes:       NewPrizeCatalog(),
		rules:        NewRuleSet(),
		ledger:       NewLedger(),
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:          time.Now,
		recorder:     noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DrawSession) reject(action string, err error) error {
	logger.Infof("Rejected %s: %v", action, err)
	s.recorder.ActionRejected(action)
	return err
}

// discardPending drops an uncommitted batch. Callers hold s.mu.
func (s *DrawSession) discardPending() {
	if s.state == StatePending {
		logger.Infof("Discarding %d uncommitted winners", len(s.pending))
	}
	s.pending = nil
	s.state = StateIdle
}

// State returns the controller's current phase.
func (s *DrawSession) State() DrawState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddParticipant adds a single participant.
func (s *DrawSession) AddParticipant(p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(p.Department) == "" {
		p.Department = models.DefaultDepartment
	}
	if err := s.participants.Add(p); err != nil {
		return s.reject("add_participant", err)
	}
	return nil
}

// ImportParticipants appends a batch of participants, skipping ids that are
// already present. It returns how many were added and how many were skipped.
func (s *DrawSession) ImportParticipants(ps []models.Participant) (added, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range ps {
		if err := s.participants.Add(p); err != nil {
			logger.Infof("Skipping participant %q (%s): %v", p.Name, p.ID, err)
			skipped++
			continue
		}
		added++
	}
	logger.Infof("Imported %d participants, skipped %d", added, skipped)
	return added, skipped
}

// Participants returns every participant in import order.
func (s *DrawSession) Participants() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants.List()
}

// AddPrize creates a prize. A level of zero or less puts it below every
// existing prize.
func (s *DrawSession) AddPrize(name string, count, level int, image string) (models.Prize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level <= 0 {
		level = s.prizes.Len() + 1
	}
	prize := models.Prize{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(name),
		Count: count,
		Level: level,
		Image: strings.TrimSpace(image),
	}
	if err := s.prizes.Add(prize); err != nil {
		return models.Prize{}, s.reject("add_prize", err)
	}
	return prize, nil
}

// DeletePrize removes a prize that has no committed winners.
func (s *DrawSession) DeletePrize(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prizes.Get(id); !ok {
		return s.reject("delete_prize", ErrPrizeNotFound)
	}
	if s.ledger.CountFor(id) > 0 {
		return s.reject("delete_prize", ErrPrizeHasWinners)
	}
	if id == s.selected {
		if s.state == StateRunning {
			return s.reject("delete_prize", ErrDrawInProgress)
		}
		s.discardPending()
		s.selected = ""
	}
	s.prizes.Delete(id)
	return nil
}

// Prizes returns the catalog ordered by level.
func (s *DrawSession) Prizes() []models.Prize {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prizes.List()
}

// PrizeBoard returns every prize with its progress.
func (s *DrawSession) PrizeBoard() []models.PrizeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	prizes := s.prizes.List()
	out := make([]models.PrizeStatus, 0, len(prizes))
	for _, p := range prizes {
		out = append(out, s.statusOf(p))
	}
	return out
}

func (s *DrawSession) statusOf(p models.Prize) models.PrizeStatus {
	committed := s.ledger.CountFor(p.ID)
	return models.PrizeStatus{
		Prize:     p,
		Committed: committed,
		Remaining: max(p.Count-committed, 0),
		Complete:  committed >= p.Count,
	}
}

// AddRule forces participantID to win prizeID when next drawn.
func (s *DrawSession) AddRule(prizeID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prizes.Get(prizeID); !ok {
		return s.reject("add_rule", ErrPrizeNotFound)
	}
	if _, ok := s.participants.Get(participantID); !ok {
		return s.reject("add_rule", ErrParticipantNotFound)
	}
	s.rules.Add(models.OverrideRule{PrizeID: prizeID, ParticipantID: participantID})
	return nil
}

// RemoveRule drops an override rule and reports whether it existed.
func (s *DrawSession) RemoveRule(prizeID, participantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.Remove(prizeID, participantID)
}

// Rules returns the override rules in insertion order.
func (s *DrawSession) Rules() []models.OverrideRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.List()
}

// SelectPrize makes prizeID the prize to draw next. It is refused while a
// draw runs and discards any uncommitted batch.
func (s *DrawSession) SelectPrize(prizeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return s.reject("select", ErrDrawInProgress)
	}
	prize, ok := s.prizes.Get(prizeID)
	if !ok {
		return s.reject("select", ErrPrizeNotFound)
	}
	if s.ledger.RemainingSlots(prize) <= 0 {
		return s.reject("select", ErrPrizeExhausted)
	}
	s.discardPending()
	s.selected = prizeID
	return nil
}

// ClearSelection leaves the draw screen.
func (s *DrawSession) ClearSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return s.reject("clear", ErrDrawInProgress)
	}
	s.discardPending()
	s.selected = ""
	return nil
}

// selectedPrize returns the selected prize. Callers hold s.mu.
func (s *DrawSession) selectedPrize() (models.Prize, error) {
	if s.selected == "" {
		return models.Prize{}, ErrNoPrizeSelected
	}
	prize, ok := s.prizes.Get(s.selected)
	if !ok {
		return models.Prize{}, ErrPrizeNotFound
	}
	return prize, nil
}

// Start begins the draw animation for the selected prize.
func (s *DrawSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return s.reject("start", ErrDrawInProgress)
	case StatePending:
		return s.reject("start", ErrInvalidTransition)
	}
	prize, err := s.selectedPrize()
	if err != nil {
		return s.reject("start", err)
	}
	if s.ledger.RemainingSlots(prize) <= 0 {
		return s.reject("start", ErrPrizeExhausted)
	}
	if len(s.participants.Eligible(s.ledger)) == 0 {
		return s.reject("start", ErrNoEligibleParticipants)
	}

	s.state = StateRunning
	s.recorder.DrawStarted()
	logger.Infof("Draw started for prize %q", prize.Name)
	return nil
}

// Stop fixes the round's winners and holds them until Commit.
func (s *DrawSession) Stop() ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return nil, s.reject("stop", ErrInvalidTransition)
	}
	prize, err := s.selectedPrize()
	if err != nil {
		s.state = StateIdle
		return nil, s.reject("stop", err)
	}

	batch := SelectWinners(
		s.rng,
		prize,
		s.ledger.RemainingSlots(prize),
		s.participants.Eligible(s.ledger),
		s.rules.List(),
	)
	s.pending = batch
	s.state = StatePending
	logger.Infof("Draw stopped for prize %q with %d winners pending", prize.Name, len(batch))
	return slices.Clone(batch), nil
}

// Commit records the pending batch in the ledger. Calling it again before
// the next Stop does nothing.
func (s *DrawSession) Commit() ([]models.WinnerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return nil, nil
	case StateRunning:
		return nil, s.reject("commit", ErrInvalidTransition)
	}
	prize, err := s.selectedPrize()
	if err != nil {
		s.discardPending()
		return nil, s.reject("commit", err)
	}

	now := s.now()
	records := make([]models.WinnerRecord, 0, len(s.pending))
	for _, p := range s.pending {
		records = append(records, models.WinnerRecord{
			ID:          uuid.NewString(),
			Participant: p,
			PrizeID:     prize.ID,
			Timestamp:   now,
		})
	}
	if err := s.ledger.Append(prize, records); err != nil {
		s.discardPending()
		return nil, s.reject("commit", err)
	}

	s.pending = nil
	s.state = StateIdle
	s.recorder.RoundCommitted(len(records))
	logger.Infof("Committed %d winners for prize %q", len(records), prize.Name)
	return records, nil
}

// ResetWinners clears the winner ledger. Participants, prizes and override
// rules are kept.
func (s *DrawSession) ResetWinners() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return s.reject("reset_winners", ErrDrawInProgress)
	}
	s.discardPending()
	s.ledger.ResetAll()
	logger.Infof("Winner ledger reset")
	return nil
}

// ResetAll clears participants, prizes, override rules and winners.
func (s *DrawSession) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return s.reject("reset_all", ErrDrawInProgress)
	}
	s.discardPending()
	s.selected = ""
	s.ledger.ResetAll()
	s.rules.Reset()
	s.prizes.Reset()
	s.participants.Reset()
	logger.Infof("Event reset")
	return nil
}

// Winners returns every committed record in commit order.
func (s *DrawSession) Winners() []models.WinnerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.All()
}

// WinnersFor returns one prize's committed winners in commit order.
func (s *DrawSession) WinnersFor(prizeID string) []models.WinnerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.WinnersFor(prizeID)
}

// Results returns the committed records together with the current catalog,
// taken at the same instant, for export.
func (s *DrawSession) Results() ([]models.WinnerRecord, []models.Prize) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.All(), s.prizes.List()
}

// History groups committed winners by prize, grand prize first and newest
// winner first. Prizes without winners are left out.
func (s *DrawSession) History() []models.PrizeWinners {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PrizeWinners
	for _, p := range s.prizes.List() {
		winners := s.ledger.WinnersFor(p.ID)
		if len(winners) == 0 {
			continue
		}
		slices.Reverse(winners)
		out = append(out, models.PrizeWinners{Prize: p, Winners: winners})
	}
	return out
}

// Snapshot describes the draw screen.
func (s *DrawSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:        s.state,
		Eligible:     len(s.participants.Eligible(s.ledger)),
		Participants: s.participants.Len(),
		Pending:      slices.Clone(s.pending),
	}
	if prize, err := s.selectedPrize(); err == nil {
		status := s.statusOf(prize)
		snap.Prize = &status
		snap.DrawCount = min(status.Remaining, BatchCap)
		snap.Winners = s.ledger.WinnersFor(prize.ID)
	}
	return snap
}
