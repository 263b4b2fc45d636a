/*
ports.go - Boundaries to the collaborators the engine does not own

PURPOSE:
  Identity records, course master data, email delivery and PDF generation live
  elsewhere. The engine reads facts through FactsProvider and RateProvider and
  emits side effects through Notifier and DocumentGenerator.

FIRE AND FORGET:
  Notifier and DocumentGenerator errors are logged by the service and never
  returned to the caller: a contract that was offered stays offered even if the
  email bounced.

SEE ALSO:
  - store.go: Store embeds the two providers
  - notify/: log-backed implementations
*/
package engine

import (
	"context"
	"time"
)

// FactsProvider returns read-only facts of course offerings.
type FactsProvider interface {
	GetOffering(ctx context.Context, id OfferingID) (Offering, error)
}

// RateProvider returns the posting (and its rate table) of a unit and semester.
type RateProvider interface {
	PostingFor(ctx context.Context, unitLabel string, semester SemesterCode) (Posting, error)
}

// Notifier delivers contract notifications to the TA.
type Notifier interface {
	// NotifyOffer is sent when a contract enters OPN.
	NotifyOffer(ctx context.Context, person PersonID, deadline time.Time, offerURL string) error

	// NotifyAcceptance is sent when a contract enters ACC.
	NotifyAcceptance(ctx context.Context, contract Contract, values LetterValues) error
}

// DocumentGenerator renders the signed offer of an accepted contract. It is
// given substitution values only; layout belongs to the generator.
type DocumentGenerator interface {
	GenerateOffer(ctx context.Context, contract Contract, values LetterValues) error
}
