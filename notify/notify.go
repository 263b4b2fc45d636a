/*
Package notify provides the delivery side of contract notifications.

Email delivery and PDF rendering belong to other systems. The implementations
here record what would be sent through the structured logger, which is what the
server runs with until a mail gateway is configured.
*/
package notify

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
)

// LogNotifier implements engine.Notifier by logging each notification.
type LogNotifier struct {
	Logger *zap.Logger
}

// NewLogNotifier creates a notifier that writes to logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{Logger: logger.Named("notify")}
}

func (n *LogNotifier) NotifyOffer(_ context.Context, person engine.PersonID, deadline time.Time, offerURL string) error {
	n.Logger.Info("offer notification",
		zap.String("person_id", string(person)),
		zap.Time("deadline", deadline),
		zap.String("offer_url", offerURL))
	return nil
}

func (n *LogNotifier) NotifyAcceptance(_ context.Context, contract engine.Contract, values engine.LetterValues) error {
	n.Logger.Info("acceptance notification",
		zap.String("contract_id", string(contract.ID)),
		zap.String("person_id", string(contract.PersonID)),
		zap.String("grand_total", values["grand_total"]))
	return nil
}

// LogDocuments implements engine.DocumentGenerator by logging the letter
// substitutions instead of rendering a PDF.
type LogDocuments struct {
	Logger *zap.Logger
}

// NewLogDocuments creates a document generator that writes to logger.
func NewLogDocuments(logger *zap.Logger) *LogDocuments {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDocuments{Logger: logger.Named("documents")}
}

func (d *LogDocuments) GenerateOffer(_ context.Context, contract engine.Contract, values engine.LetterValues) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("contract_id", string(contract.ID)))
	for _, k := range keys {
		fields = append(fields, zap.String(k, values[k]))
	}
	d.Logger.Info("offer letter", fields...)
	return nil
}
