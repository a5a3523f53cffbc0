// Package pending keeps the per-chat conversation state the bot is waiting
// on: an ad-hoc confirmation, a recurring-rule wizard and the daily recurring
// confirmations. State lives in memory for the lifetime of the process.
package pending

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/model"
)

// WizardStep is the position of a chat inside the recurring-rule wizard.
type WizardStep int

const (
	StepAwaitingDescription WizardStep = iota
	StepAwaitingConfirmation
	StepAwaitingDay
)

func (s WizardStep) String() string {
	switch s {
	case StepAwaitingDescription:
		return "awaiting_description"
	case StepAwaitingConfirmation:
		return "awaiting_confirmation"
	case StepAwaitingDay:
		return "awaiting_day"
	default:
		return "unknown"
	}
}

// Confirmation is a categorized transaction waiting for "sim" or "não".
type Confirmation struct {
	UserID      string
	Amount      decimal.Decimal
	Category    model.Category
	Description string
	Date        time.Time
	Note        string
}

// RecurringDraft is a recurring rule being assembled by the wizard. Amount,
// Category and Description are meaningful from StepAwaitingConfirmation on.
type RecurringDraft struct {
	UserID      string
	Step        WizardStep
	Amount      decimal.Decimal
	Category    model.Category
	Description string
	Note        string
}

// RecurringConfirmation asks whether this month's instance of a recurring
// rule should be posted. DueOn is the local day of the firing that queued it.
type RecurringConfirmation struct {
	RuleID      string
	DueOn       time.Time
	UserID      string
	FirstName   string
	Amount      decimal.Decimal
	Category    model.Category
	Description string
	Note        string
}

// Kinds reports which pending values exist for a chat.
type Kinds struct {
	Confirmation          bool
	RecurringDraft        bool
	RecurringConfirmation bool
	// QueuedRecurring counts recurring confirmations waiting behind the
	// active one.
	QueuedRecurring int
}

// Store holds at most one value of each kind per chat. Recurring
// confirmations form a FIFO whose head is the active one.
type Store struct {
	mu            sync.Mutex
	confirmations map[int64]Confirmation
	drafts        map[int64]RecurringDraft
	recurring     map[int64][]RecurringConfirmation
	// answered maps rule id to the DueOn of the firing it was answered for.
	answered map[int64]map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		confirmations: make(map[int64]Confirmation),
		drafts:        make(map[int64]RecurringDraft),
		recurring:     make(map[int64][]RecurringConfirmation),
		answered:      make(map[int64]map[string]time.Time),
	}
}

func (s *Store) Confirmation(chatID int64) (Confirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.confirmations[chatID]
	return c, ok
}

func (s *Store) HasConfirmation(chatID int64) bool {
	_, ok := s.Confirmation(chatID)
	return ok
}

// SetConfirmation replaces any confirmation already pending for the chat.
func (s *Store) SetConfirmation(chatID int64, c Confirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[chatID] = c
}

func (s *Store) DeleteConfirmation(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.confirmations, chatID)
}

func (s *Store) Draft(chatID int64) (RecurringDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[chatID]
	return d, ok
}

func (s *Store) HasDraft(chatID int64) bool {
	_, ok := s.Draft(chatID)
	return ok
}

func (s *Store) SetDraft(chatID int64, d RecurringDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[chatID] = d
}

func (s *Store) DeleteDraft(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, chatID)
}

// RecurringConfirmation returns the active recurring confirmation.
func (s *Store) RecurringConfirmation(chatID int64) (RecurringConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.recurring[chatID]
	if len(q) == 0 {
		return RecurringConfirmation{}, false
	}
	return q[0], true
}

func (s *Store) HasRecurringConfirmation(chatID int64) bool {
	_, ok := s.RecurringConfirmation(chatID)
	return ok
}

// PushRecurringConfirmations appends items to the chat's queue. Entries
// left over from an earlier firing are dropped first. Rules already queued,
// or already answered for the same firing, are skipped. It reports how many
// were added and whether the queue has a new active head that needs a
// prompt.
func (s *Store) PushRecurringConfirmations(chatID int64, items ...RecurringConfirmation) (added int, activated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firing time.Time
	for _, rc := range items {
		if rc.DueOn.After(firing) {
			firing = rc.DueOn
		}
	}

	old := s.recurring[chatID]
	q := make([]RecurringConfirmation, 0, len(old)+len(items))
	for _, rc := range old {
		if !rc.DueOn.Before(firing) {
			q = append(q, rc)
		}
	}
	headDropped := len(old) > 0 && (len(q) == 0 || q[0].RuleID != old[0].RuleID)
	s.forgetAnsweredBefore(chatID, firing)

	seen := make(map[string]struct{}, len(q)+len(items))
	for _, rc := range q {
		seen[rc.RuleID] = struct{}{}
	}
	answered := s.answered[chatID]
	for _, rc := range items {
		if _, dup := seen[rc.RuleID]; dup {
			continue
		}
		if on, ok := answered[rc.RuleID]; ok && on.Equal(rc.DueOn) {
			continue
		}
		seen[rc.RuleID] = struct{}{}
		q = append(q, rc)
		added++
	}

	if len(q) == 0 {
		delete(s.recurring, chatID)
		return added, false
	}
	s.recurring[chatID] = q
	return added, (len(old) == 0 && added > 0) || headDropped
}

// AdvanceRecurringConfirmation records the active confirmation as answered,
// drops it and returns the next queued one, if any.
func (s *Store) AdvanceRecurringConfirmation(chatID int64) (RecurringConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.recurring[chatID]
	if len(q) == 0 {
		return RecurringConfirmation{}, false
	}

	head := q[0]
	s.forgetAnsweredBefore(chatID, head.DueOn)
	if s.answered[chatID] == nil {
		s.answered[chatID] = make(map[string]time.Time)
	}
	s.answered[chatID][head.RuleID] = head.DueOn

	if len(q) == 1 {
		delete(s.recurring, chatID)
		return RecurringConfirmation{}, false
	}

	rest := make([]RecurringConfirmation, len(q)-1)
	copy(rest, q[1:])
	s.recurring[chatID] = rest
	return rest[0], true
}

func (s *Store) forgetAnsweredBefore(chatID int64, day time.Time) {
	answered := s.answered[chatID]
	for id, on := range answered {
		if on.Before(day) {
			delete(answered, id)
		}
	}
	if len(answered) == 0 {
		delete(s.answered, chatID)
	}
}

// ClearRecurringConfirmations drops the active and every queued entry.
func (s *Store) ClearRecurringConfirmations(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recurring, chatID)
}

func (s *Store) Snapshot(chatID int64) Kinds {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, hasConfirmation := s.confirmations[chatID]
	_, hasDraft := s.drafts[chatID]
	q := s.recurring[chatID]

	k := Kinds{
		Confirmation:          hasConfirmation,
		RecurringDraft:        hasDraft,
		RecurringConfirmation: len(q) > 0,
	}
	if len(q) > 1 {
		k.QueuedRecurring = len(q) - 1
	}
	return k
}
