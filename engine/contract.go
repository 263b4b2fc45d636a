/*
contract.go - TA contracts, course assignments and the contract state machine

PURPOSE:
  A Contract is one TA's offer/appointment within a posting. It owns one
  CourseAssignment per offering, each carrying the BU the TA works on it.

STATE MACHINE:
  ┌─────┐ offer ┌─────┐ accept ┌─────┐ countersign ┌─────┐
  │ NEW │──────▶│ OPN │───────▶│ ACC │────────────▶│ SGN │
  └─────┘       └─────┘        └─────┘             └─────┘
                   │ decline
                   ▼
                ┌─────┐
                │ REJ │   any status except SGN ──cancel──▶ CAN
                └─────┘
  Reopen (administrative) takes ACC, SGN, REJ or CAN back to NEW.

  REJ and CAN are terminal: all assignments count as 0 BU everywhere
  downstream, but the rows are kept.

EDIT RULES:
  NEW, OPN: assignments editable, status unchanged
  ACC:      editable, status resets to NEW (re-confirmation required)
  SGN, REJ, CAN: only through Reopen

SEE ALSO:
  - service.go: Applies these rules inside one store transaction
  - compensation.go: Money derived from assignments
*/
package engine

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusNew       Status = "NEW"
	StatusOffered   Status = "OPN"
	StatusRejected  Status = "REJ"
	StatusAccepted  Status = "ACC"
	StatusSigned    Status = "SGN"
	StatusCancelled Status = "CAN"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusOffered, StatusRejected, StatusAccepted, StatusSigned, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses zero every BU contribution of the contract.
func (s Status) Terminal() bool { return s == StatusRejected || s == StatusCancelled }

// Taing is false for statuses that earn no pay (NEW, REJ, CAN).
func (s Status) Taing() bool { return s != StatusNew && !s.Terminal() }

var transitions = map[Status][]Status{
	StatusNew:      {StatusOffered, StatusCancelled},
	StatusOffered:  {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusSigned, StatusCancelled},
	StatusRejected: {StatusCancelled},
}

// CanTransition reports whether from -> to is a state machine edge.
// Reopen is not an edge; it is an explicit administrative action.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanReopen reports whether the administrative re-open applies.
func CanReopen(from Status) bool {
	switch from {
	case StatusAccepted, StatusSigned, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// EditOutcome is the status a contract must take when its assignments change.
// needsReopen is true when the edit is only allowed through Reopen.
func EditOutcome(from Status) (next Status, needsReopen bool) {
	switch from {
	case StatusNew, StatusOffered:
		return from, false
	case StatusAccepted:
		return StatusNew, false
	default:
		return StatusNew, true
	}
}

// =============================================================================
// DUTY DESCRIPTION
// =============================================================================

// DutyDescription describes the work of an assignment. Lab/tutorial duties earn
// the preparation bonus.
type DutyDescription struct {
	ID              DescriptionID
	UnitLabel       string
	Description     string
	IsLabOrTutorial bool
	Hidden          bool
}

// =============================================================================
// COURSE ASSIGNMENT
// =============================================================================

// CourseAssignment is the BU a contract assigns to one offering.
type CourseAssignment struct {
	ID          AssignmentID
	ContractID  ContractID
	OfferingID  OfferingID
	BU          decimal.Decimal
	Description DutyDescription
}

// PrepBU is the preparation bonus of the assignment: 0.17 for lab/tutorial
// duties before 1234, the posting's configured bonus from 1234 on.
func (a CourseAssignment) PrepBU(p Posting) decimal.Decimal {
	if !a.Description.IsLabOrTutorial {
		return decimal.Zero
	}
	if p.Semester.Before("1234") {
		return LabBonusBU
	}
	return p.Rates.PrepBonus()
}

// =============================================================================
// CONTRACT
// =============================================================================

// Contract is a TA's offer record for one posting.
type Contract struct {
	ID            ContractID
	PostingID     PostingID
	ApplicationID ApplicationID
	PersonID      PersonID
	EmployeeID    string
	Name          string
	Category      Category
	Status        Status

	// Rates captured at creation; later rate table edits do not apply.
	PayPerBU         decimal.Decimal
	ScholarshipPerBU decimal.Decimal
	AccountID        string

	AppointmentStart time.Time
	AppointmentEnd   time.Time
	PayStart         time.Time
	PayEnd           time.Time
	Deadline         time.Time

	Comments    string
	Assignments []CourseAssignment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalBU is bu + prep for one of the contract's assignments, or zero when the
// contract is cancelled or rejected.
func (c Contract) TotalBU(p Posting, a CourseAssignment) decimal.Decimal {
	if c.Status.Terminal() {
		return decimal.Zero
	}
	return a.BU.Add(a.PrepBU(p))
}

// Assignment returns the contract's assignment for an offering.
func (c Contract) Assignment(offering OfferingID) (CourseAssignment, bool) {
	for _, a := range c.Assignments {
		if a.OfferingID == offering {
			return a, true
		}
	}
	return CourseAssignment{}, false
}

// Transition moves the contract along a state machine edge.
func (c *Contract) Transition(to Status, at time.Time) error {
	if !CanTransition(c.Status, to) {
		return &StateError{ContractID: c.ID, From: c.Status, Action: "move to " + string(to)}
	}
	c.Status = to
	c.UpdatedAt = at
	return nil
}

// Reopen is the administrative action returning a contract to NEW.
func (c *Contract) Reopen(at time.Time) error {
	if !CanReopen(c.Status) {
		return &StateError{ContractID: c.ID, From: c.Status, Action: "reopen"}
	}
	c.Status = StatusNew
	c.UpdatedAt = at
	return nil
}

// ReplaceAssignments swaps the assignment set and applies the edit rules.
// With reopen set, SGN/REJ/CAN contracts are reopened as part of the edit.
func (c *Contract) ReplaceAssignments(assignments []CourseAssignment, reopen bool, at time.Time) error {
	next, needsReopen := EditOutcome(c.Status)
	if needsReopen && !reopen {
		return &StateError{ContractID: c.ID, From: c.Status, Action: "edit assignments"}
	}
	if err := ValidateAssignments(assignments); err != nil {
		return err
	}
	for i := range assignments {
		assignments[i].ContractID = c.ID
	}
	c.Assignments = assignments
	c.Status = next
	c.UpdatedAt = at
	return nil
}

// ValidateAssignments rejects duplicate offerings and negative BU.
func ValidateAssignments(assignments []CourseAssignment) error {
	verr := &ValidationError{}
	seen := make(map[OfferingID]bool, len(assignments))
	for i, a := range assignments {
		field := "assignments[" + strconv.Itoa(i) + "]"
		if a.OfferingID == "" {
			verr.Add(field+".offering", "course is required")
		} else if seen[a.OfferingID] {
			verr.Add(field+".offering", "course %s is selected more than once", a.OfferingID)
		}
		seen[a.OfferingID] = true
		if a.BU.IsNegative() {
			verr.Add(field+".bu", "base units cannot be negative")
		}
		if a.Description.ID == "" {
			verr.Add(field+".description", "duty description is required")
		}
	}
	return verr.OrNil()
}
