package services

import "errors"

// Validation rejections. None of them change session state.
var (
	ErrPrizeNotFound          = errors.New("prize does not exist")
	ErrParticipantNotFound    = errors.New("participant does not exist")
	ErrInvalidPrize           = errors.New("prize needs a name and a positive winner count")
	ErrInvalidParticipant     = errors.New("participant needs an id and a name")
	ErrDuplicateParticipant   = errors.New("participant id already imported")
	ErrNoPrizeSelected        = errors.New("no prize selected")
	ErrPrizeExhausted         = errors.New("this prize pool is empty")
	ErrNoEligibleParticipants = errors.New("no more participants available")
	ErrDrawInProgress         = errors.New("a draw is in progress")
	ErrInvalidTransition      = errors.New("action not allowed in the current draw state")
	ErrPrizeHasWinners        = errors.New("prize already has committed winners")
	ErrAlreadyWon             = errors.New("participant has already won a prize")
	ErrQuotaExceeded          = errors.New("batch exceeds the prize's remaining slots")
)
