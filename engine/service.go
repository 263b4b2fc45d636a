/*
service.go - Contract use cases: create, transition, revise, summarize

PURPOSE:
  Orchestrates the engine over a TxStore. Every write runs inside WithTx so the
  contract row, its assignments and any status reset commit together.

FLOW (ReviseAssignments):
  ┌──────────────────────────────────────────────────────────────────┐
  │ WithTx:                                                          │
  │   load contract + posting                                        │
  │   posting configured? descriptions for lab and non-lab duties?   │
  │   resolve offerings and descriptions                             │
  │   EditOutcome: keep / reset to NEW / require reopen              │
  │   UpdateContract (row + assignments + status)                    │
  └──────────────────────────────────────────────────────────────────┘

SIDE EFFECTS:
  Run after commit. Entering OPN sends the offer notification; entering ACC
  generates the signed offer and sends the acceptance notification. Failures
  are logged, never returned.

SEE ALSO:
  - contract.go: State machine and edit rules
  - entitlement.go: Offering summaries
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ContractService handles the contract lifecycle of postings.
type ContractService struct {
	Store        TxStore
	Entitlements *EntitlementCalculator
	Notifier     Notifier
	Documents    DocumentGenerator
	Logger       *zap.Logger

	// OfferURL builds the link sent with an offer.
	OfferURL func(ContractID) string

	Now func() time.Time
}

// NewContractService wires a service with the default strategy table.
func NewContractService(store TxStore, notifier Notifier, docs DocumentGenerator, logger *zap.Logger) *ContractService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractService{
		Store:        store,
		Entitlements: NewEntitlementCalculator(),
		Notifier:     notifier,
		Documents:    docs,
		Logger:       logger,
		OfferURL:     func(id ContractID) string { return "/offers/" + string(id) },
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// POSTING READINESS
// =============================================================================

// CheckPosting returns a ConfigurationError naming the first missing piece of
// configuration that blocks the posting's contract workflow.
func (s *ContractService) CheckPosting(ctx context.Context, st Store, p Posting) error {
	if err := p.Validate(); err != nil {
		return err
	}
	descs, err := st.ListDescriptions(ctx, p.UnitLabel)
	if err != nil {
		return fmt.Errorf("failed to list duty descriptions: %w", err)
	}
	var lab, nonLab bool
	for _, d := range descs {
		if d.Hidden {
			continue
		}
		if d.IsLabOrTutorial {
			lab = true
		} else {
			nonLab = true
		}
	}
	if !lab {
		return &ConfigurationError{PostingID: p.ID, Missing: "a lab/tutorial duty description for unit " + p.UnitLabel}
	}
	if !nonLab {
		return &ConfigurationError{PostingID: p.ID, Missing: "a non-lab duty description for unit " + p.UnitLabel}
	}
	return nil
}

// =============================================================================
// CONTRACT CREATION
// =============================================================================

// NewContract is the input for creating a contract.
type NewContract struct {
	PostingID     PostingID
	ApplicationID ApplicationID
	PersonID      PersonID
	EmployeeID    string
	Name          string
	Category      Category
	Deadline      *time.Time
	Comments      string
}

// CreateContract creates a NEW contract with rates captured from the posting.
func (s *ContractService) CreateContract(ctx context.Context, in NewContract) (Contract, error) {
	var created Contract
	err := s.Store.WithTx(ctx, func(st Store) error {
		p, err := st.GetPosting(ctx, in.PostingID)
		if err != nil {
			return err
		}
		if err := s.CheckPosting(ctx, st, p); err != nil {
			return err
		}
		rate, ok := p.Rates.Rate(in.Category)
		if !ok {
			verr := &ValidationError{}
			verr.Add("category", "unknown TA category %q", in.Category)
			return verr
		}

		now := s.Now()
		c := Contract{
			ID:               ContractID(uuid.NewString()),
			PostingID:        p.ID,
			ApplicationID:    in.ApplicationID,
			PersonID:         in.PersonID,
			EmployeeID:       in.EmployeeID,
			Name:             in.Name,
			Category:         in.Category,
			Status:           StatusNew,
			PayPerBU:         rate.SalaryPerBU,
			ScholarshipPerBU: rate.ScholarshipPerBU,
			AccountID:        rate.AccountID,
			AppointmentStart: p.AppointmentStart,
			AppointmentEnd:   p.AppointmentEnd,
			PayStart:         p.PayStart,
			PayEnd:           p.PayEnd,
			Deadline:         p.Deadline,
			Comments:         in.Comments,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if in.Deadline != nil {
			c.Deadline = *in.Deadline
		}
		if err := st.CreateContract(ctx, c); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return Contract{}, err
	}
	s.Logger.Info("contract created",
		zap.String("contract_id", string(created.ID)),
		zap.String("posting_id", string(created.PostingID)),
		zap.String("category", string(created.Category)))
	return created, nil
}

// =============================================================================
// STATUS CHANGES
// =============================================================================

// Transition moves a contract along a state machine edge and runs the side
// effects of the new status after commit.
func (s *ContractService) Transition(ctx context.Context, id ContractID, to Status) (Contract, error) {
	c, err := s.mutate(ctx, id, func(c *Contract) error { return c.Transition(to, s.Now()) })
	if err != nil {
		return Contract{}, err
	}
	s.afterTransition(ctx, c)
	return c, nil
}

// Reopen is the administrative action taking a contract back to NEW.
func (s *ContractService) Reopen(ctx context.Context, id ContractID) (Contract, error) {
	return s.mutate(ctx, id, func(c *Contract) error { return c.Reopen(s.Now()) })
}

func (s *ContractService) mutate(ctx context.Context, id ContractID, fn func(*Contract) error) (Contract, error) {
	var result Contract
	err := s.Store.WithTx(ctx, func(st Store) error {
		c, err := st.GetContract(ctx, id)
		if err != nil {
			return err
		}
		from := c.Status
		if err := fn(&c); err != nil {
			return err
		}
		if err := st.UpdateContract(ctx, c); err != nil {
			return err
		}
		s.Logger.Info("contract status changed",
			zap.String("contract_id", string(c.ID)),
			zap.String("from", string(from)),
			zap.String("to", string(c.Status)))
		result = c
		return nil
	})
	return result, err
}

func (s *ContractService) afterTransition(ctx context.Context, c Contract) {
	log := s.Logger.With(zap.String("contract_id", string(c.ID)))
	switch c.Status {
	case StatusOffered:
		if s.Notifier == nil {
			return
		}
		if err := s.Notifier.NotifyOffer(ctx, c.PersonID, c.Deadline, s.OfferURL(c.ID)); err != nil {
			log.Warn("offer notification failed", zap.Error(err))
		}
	case StatusAccepted:
		values, err := s.LetterValues(ctx, c.ID)
		if err != nil {
			log.Warn("letter values unavailable", zap.Error(err))
			return
		}
		if s.Documents != nil {
			if err := s.Documents.GenerateOffer(ctx, c, values); err != nil {
				log.Warn("offer document generation failed", zap.Error(err))
			}
		}
		if s.Notifier != nil {
			if err := s.Notifier.NotifyAcceptance(ctx, c, values); err != nil {
				log.Warn("acceptance notification failed", zap.Error(err))
			}
		}
	}
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// AssignmentInput is one requested course assignment.
type AssignmentInput struct {
	OfferingID    OfferingID
	BU            decimal.Decimal
	DescriptionID DescriptionID
}

// ReviseAssignments replaces a contract's assignments. Accepted contracts go
// back to NEW; signed, rejected and cancelled contracts need reopen.
func (s *ContractService) ReviseAssignments(ctx context.Context, id ContractID, inputs []AssignmentInput, reopen bool) (Contract, error) {
	var result Contract
	err := s.Store.WithTx(ctx, func(st Store) error {
		c, err := st.GetContract(ctx, id)
		if err != nil {
			return err
		}
		p, err := st.GetPosting(ctx, c.PostingID)
		if err != nil {
			return err
		}
		if err := s.CheckPosting(ctx, st, p); err != nil {
			return err
		}

		assignments, err := s.resolveAssignments(ctx, st, c, p, inputs)
		if err != nil {
			return err
		}
		from := c.Status
		if err := c.ReplaceAssignments(assignments, reopen, s.Now()); err != nil {
			return err
		}
		if err := st.UpdateContract(ctx, c); err != nil {
			return err
		}
		if from != c.Status {
			s.Logger.Info("contract reset for re-confirmation",
				zap.String("contract_id", string(c.ID)),
				zap.String("from", string(from)))
		}
		result = c
		return nil
	})
	return result, err
}

func (s *ContractService) resolveAssignments(ctx context.Context, st Store, c Contract, p Posting, inputs []AssignmentInput) ([]CourseAssignment, error) {
	verr := &ValidationError{}
	assignments := make([]CourseAssignment, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("assignments[%d]", i)
		a := CourseAssignment{OfferingID: in.OfferingID, BU: in.BU}
		if existing, ok := c.Assignment(in.OfferingID); ok {
			a.ID = existing.ID
		} else {
			a.ID = AssignmentID(uuid.NewString())
		}

		if in.OfferingID != "" {
			o, err := st.GetOffering(ctx, in.OfferingID)
			switch {
			case IsNotFound(err):
				verr.Add(field+".offering", "course %s does not exist", in.OfferingID)
			case err != nil:
				return nil, err
			case o.Semester != p.Semester:
				verr.Add(field+".offering", "course %s is not offered in semester %s", o.Name(), p.Semester)
			}
		}

		if in.DescriptionID != "" {
			d, err := st.GetDescription(ctx, in.DescriptionID)
			switch {
			case IsNotFound(err):
				verr.Add(field+".description", "duty description %s does not exist", in.DescriptionID)
			case err != nil:
				return nil, err
			default:
				a.Description = d
			}
		}
		assignments = append(assignments, a)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// =============================================================================
// READ MODELS
// =============================================================================

// ContractSummary is a contract with its money figures.
type ContractSummary struct {
	Contract     Contract
	Posting      Posting
	Compensation Compensation
}

// Summary computes the compensation of a contract.
func (s *ContractService) Summary(ctx context.Context, id ContractID) (ContractSummary, error) {
	c, err := s.Store.GetContract(ctx, id)
	if err != nil {
		return ContractSummary{}, err
	}
	p, err := s.Store.GetPosting(ctx, c.PostingID)
	if err != nil {
		return ContractSummary{}, err
	}
	comp, err := Compensate(c, p)
	if err != nil {
		return ContractSummary{}, err
	}
	return ContractSummary{Contract: c, Posting: p, Compensation: comp}, nil
}

// PostingContracts computes the compensation of every contract of a posting.
func (s *ContractService) PostingContracts(ctx context.Context, posting PostingID) ([]ContractSummary, error) {
	p, err := s.Store.GetPosting(ctx, posting)
	if err != nil {
		return nil, err
	}
	contracts, err := s.Store.ListContracts(ctx, posting)
	if err != nil {
		return nil, err
	}
	summaries := make([]ContractSummary, 0, len(contracts))
	for _, c := range contracts {
		comp, err := Compensate(c, p)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ContractSummary{Contract: c, Posting: p, Compensation: comp})
	}
	return summaries, nil
}

// LetterValues builds the offer letter substitutions of a contract.
func (s *ContractService) LetterValues(ctx context.Context, id ContractID) (LetterValues, error) {
	sum, err := s.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	offerings := make(map[OfferingID]Offering, len(sum.Contract.Assignments))
	for _, a := range sum.Contract.Assignments {
		o, err := s.Store.GetOffering(ctx, a.OfferingID)
		if err != nil {
			continue
		}
		offerings[o.ID] = o
	}
	return BuildLetterValues(sum.Contract, sum.Posting, sum.Compensation, offerings), nil
}

// OfferingAllocation summarizes the entitlement of one offering in a posting.
func (s *ContractService) OfferingAllocation(ctx context.Context, posting PostingID, offering OfferingID) (Allocation, error) {
	p, err := s.Store.GetPosting(ctx, posting)
	if err != nil {
		return Allocation{}, err
	}
	o, err := s.Store.GetOffering(ctx, offering)
	if err != nil {
		return Allocation{}, err
	}
	contracts, err := s.Store.ListContracts(ctx, posting)
	if err != nil {
		return Allocation{}, err
	}
	return s.Entitlements.Summarize(o, p, contracts), nil
}

// Allocation summarizes an offering against the posting of its own unit and
// semester.
func (s *ContractService) Allocation(ctx context.Context, offering OfferingID) (Allocation, error) {
	o, err := s.Store.GetOffering(ctx, offering)
	if err != nil {
		return Allocation{}, err
	}
	p, err := s.Store.PostingFor(ctx, o.UnitLabel, o.Semester)
	if err != nil {
		return Allocation{}, fmt.Errorf("posting for %s %s: %w", o.UnitLabel, o.Semester, err)
	}
	contracts, err := s.Store.ListContracts(ctx, p.ID)
	if err != nil {
		return Allocation{}, err
	}
	return s.Entitlements.Summarize(o, p, contracts), nil
}

// PostingAllocations summarizes every offering of the posting's unit and
// semester.
func (s *ContractService) PostingAllocations(ctx context.Context, posting PostingID) (Posting, []Allocation, error) {
	p, err := s.Store.GetPosting(ctx, posting)
	if err != nil {
		return Posting{}, nil, err
	}
	offerings, err := s.Store.ListOfferings(ctx, p.UnitLabel, p.Semester)
	if err != nil {
		return Posting{}, nil, err
	}
	contracts, err := s.Store.ListContracts(ctx, posting)
	if err != nil {
		return Posting{}, nil, err
	}
	allocations := make([]Allocation, len(offerings))
	for i, o := range offerings {
		allocations[i] = s.Entitlements.Summarize(o, p, contracts)
	}
	return p, allocations, nil
}

// =============================================================================
// TIME USE GUIDELINES
// =============================================================================

// NewTUG starts a guideline for a contract's assignment on an offering, bounded
// by the assignment's total BU. The lab preparation minimum applies when the
// offering has labs or the duty itself is a lab/tutorial duty.
func (s *ContractService) NewTUG(ctx context.Context, id ContractID, offering OfferingID) (*TUG, error) {
	c, err := s.Store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	a, ok := c.Assignment(offering)
	if !ok {
		return nil, fmt.Errorf("contract %s has no assignment on %s: %w", id, offering, ErrNotFound)
	}
	p, err := s.Store.GetPosting(ctx, c.PostingID)
	if err != nil {
		return nil, err
	}
	o, err := s.Store.GetOffering(ctx, offering)
	if err != nil {
		return nil, err
	}
	return NewTUG(c.ID, offering, c.TotalBU(p, a), o.HasLabs || a.Description.IsLabOrTutorial), nil
}
