package core

import (
	"fmt"
	"strings"
)

// Kind is the direction of a posting. Amounts are stored unsigned; the sign
// is derived from the kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindIncome
	KindExpense
)

var kindNames = map[Kind]string{
	KindIncome:  "income",
	KindExpense: "expense",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) IsValid() bool {
	return k == KindIncome || k == KindExpense
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Cadence is the periodic rule of a recurrence spec.
type Cadence int

const (
	CadenceUnknown Cadence = iota
	CadenceOnce
	CadenceWeekly
	CadenceBiweekly
	CadenceMonthly
	CadenceQuarterly
	CadenceSemiannual
	CadenceAnnual
)

var cadenceNames = map[Cadence]string{
	CadenceOnce:       "once",
	CadenceWeekly:     "weekly",
	CadenceBiweekly:   "biweekly",
	CadenceMonthly:    "monthly",
	CadenceQuarterly:  "quarterly",
	CadenceSemiannual: "semiannual",
	CadenceAnnual:     "annual",
}

func (c Cadence) String() string {
	if s, ok := cadenceNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c Cadence) IsValid() bool {
	_, ok := cadenceNames[c]
	return ok
}

func ParseCadence(s string) (Cadence, error) {
	for c, name := range cadenceNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return c, nil
		}
	}
	return CadenceUnknown, fmt.Errorf("unknown cadence %q", s)
}

func (c Cadence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Cadence) UnmarshalText(b []byte) error {
	v, err := ParseCadence(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Status is the lifecycle state of a recurrence spec.
//
//	ACTIVE <-> PAUSED
//	ACTIVE  -> FINALIZED
//	PAUSED  -> FINALIZED
//
// FINALIZED is terminal.
type Status int

const (
	StatusUnknown Status = iota
	StatusActive
	StatusPaused
	StatusFinalized
)

var statusNames = map[Status]string{
	StatusActive:    "active",
	StatusPaused:    "paused",
	StatusFinalized: "finalized",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", s)
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusPaused || next == StatusFinalized
	case StatusPaused:
		return next == StatusActive || next == StatusFinalized
	default:
		return false
	}
}

// Transition returns next or a Conflict error if the move is not allowed.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, NewError(KindConflict, "spec.transition",
			fmt.Sprintf("cannot move spec from %s to %s", s, next))
	}
	return next, nil
}

// AccountKind classifies an account.
type AccountKind string

const (
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountCash       AccountKind = "cash"
	AccountCreditCard AccountKind = "credit_card"
	AccountInvestment AccountKind = "investment"
)

func (k AccountKind) IsValid() bool {
	switch k {
	case AccountChecking, AccountSavings, AccountCash, AccountCreditCard, AccountInvestment:
		return true
	default:
		return false
	}
}
