/*
Package export produces the files handed to payroll and to administrators.

PAYROLL BATCH:
  One CSV row per assignment of every accepted or signed contract of a posting.
  The column order and the Batch ID are relied upon by the payroll upload
  tooling and must not change:

    Batch ID = <unit label>_<YYYYMMDD>_<sequence, 2 digits>

  The sequence is the posting's export counter. It is incremented inside the
  same transaction that reads the contracts, so every exported batch has a
  distinct ID even when two batches are produced on the same day.

ALLOCATION REPORT:
  An .xlsx workbook with the entitlement summary of every offering of a
  posting (report.go).
*/
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
)

const batchDateLayout = "20060102"

// PayrollRow is one line of the payroll upload. Field order is the column order.
type PayrollRow struct {
	BatchID             string `csv:"Batch ID"`
	EmployeeID          string `csv:"Employee ID"`
	Name                string `csv:"Name"`
	Category            string `csv:"Category"`
	AccountID           string `csv:"Account"`
	Course              string `csv:"Course"`
	BU                  string `csv:"BU"`
	PrepBU              string `csv:"Prep BU"`
	TotalBU             string `csv:"Total BU"`
	PayPerBU            string `csv:"Pay Per BU"`
	Pay                 string `csv:"Pay"`
	ScholarshipPerBU    string `csv:"Scholarship Per BU"`
	Scholarship         string `csv:"Scholarship"`
	ContractTotalPay    string `csv:"Contract Total Pay"`
	ContractScholarship string `csv:"Contract Scholarship"`
	PayPeriods          string `csv:"Pay Periods"`
	BiweeklyPay         string `csv:"Biweekly Pay"`
	BiweeklyScholarship string `csv:"Biweekly Scholarship"`
	AppointmentStart    string `csv:"Appointment Start"`
	AppointmentEnd      string `csv:"Appointment End"`
	PayStart            string `csv:"Pay Start"`
	PayEnd              string `csv:"Pay End"`
	Status              string `csv:"Status"`
}

// Batch is one payroll upload.
type Batch struct {
	ID       string
	Posting  engine.Posting
	Sequence int
	Rows     []PayrollRow
}

// WriteCSV writes the batch with its header row.
func (b Batch) WriteCSV(w io.Writer) error {
	return gocsv.Marshal(b.Rows, w)
}

// BatchID formats the payroll batch identifier.
func BatchID(unitLabel string, date time.Time, sequence int) string {
	return fmt.Sprintf("%s_%s_%02d", unitLabel, date.Format(batchDateLayout), sequence)
}

// Exportable reports whether a contract is sent to payroll.
func Exportable(s engine.Status) bool {
	return s == engine.StatusAccepted || s == engine.StatusSigned
}

// Exporter builds payroll batches from the store.
type Exporter struct {
	Store  engine.TxStore
	Logger *zap.Logger
	Now    func() time.Time
}

// NewExporter creates an exporter over a store.
func NewExporter(store engine.TxStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{Store: store, Logger: logger, Now: time.Now}
}

// PayrollBatch assigns the next batch ID of the posting and collects its rows.
func (e *Exporter) PayrollBatch(ctx context.Context, posting engine.PostingID) (Batch, error) {
	var batch Batch
	err := e.Store.WithTx(ctx, func(st engine.Store) error {
		p, err := st.GetPosting(ctx, posting)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		contracts, err := st.ListContracts(ctx, posting)
		if err != nil {
			return err
		}
		seq, err := st.NextExportSequence(ctx, posting)
		if err != nil {
			return err
		}

		batch = Batch{ID: BatchID(p.UnitLabel, e.Now(), seq), Posting: p, Sequence: seq}
		offerings := make(map[engine.OfferingID]engine.Offering)
		for _, c := range contracts {
			if !Exportable(c.Status) {
				continue
			}
			rows, err := contractRows(ctx, st, batch.ID, c, p, offerings)
			if err != nil {
				return err
			}
			batch.Rows = append(batch.Rows, rows...)
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	e.Logger.Info("payroll batch exported",
		zap.String("batch_id", batch.ID),
		zap.String("posting_id", string(posting)),
		zap.Int("rows", len(batch.Rows)))
	return batch, nil
}

func contractRows(ctx context.Context, st engine.Store, batchID string, c engine.Contract, p engine.Posting, offerings map[engine.OfferingID]engine.Offering) ([]PayrollRow, error) {
	comp, err := engine.Compensate(c, p)
	if err != nil {
		return nil, err
	}

	rows := make([]PayrollRow, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		o, ok := offerings[a.OfferingID]
		if !ok {
			o, err = st.GetOffering(ctx, a.OfferingID)
			if err != nil {
				return nil, err
			}
			offerings[o.ID] = o
		}

		rows = append(rows, PayrollRow{
			BatchID:             batchID,
			EmployeeID:          c.EmployeeID,
			Name:                c.Name,
			Category:            string(c.Category),
			AccountID:           c.AccountID,
			Course:              o.Name(),
			BU:                  a.BU.String(),
			PrepBU:              a.PrepBU(p).String(),
			TotalBU:             c.TotalBU(p, a).String(),
			PayPerBU:            engine.FormatMoney(c.PayPerBU),
			Pay:                 engine.FormatMoney(engine.AssignmentPay(c, p, a)),
			ScholarshipPerBU:    engine.FormatMoney(c.ScholarshipPerBU),
			Scholarship:         engine.FormatMoney(scholarship(c, a)),
			ContractTotalPay:    engine.FormatMoney(comp.TotalPay),
			ContractScholarship: engine.FormatMoney(comp.ScholarshipPay),
			PayPeriods:          comp.PayPeriods.String(),
			BiweeklyPay:         engine.FormatMoney(comp.BiweeklyPay),
			BiweeklyScholarship: engine.FormatMoney(comp.BiweeklyScholarship),
			AppointmentStart:    formatDate(c.AppointmentStart),
			AppointmentEnd:      formatDate(c.AppointmentEnd),
			PayStart:            formatDate(c.PayStart),
			PayEnd:              formatDate(c.PayEnd),
			Status:              string(c.Status),
		})
	}
	return rows, nil
}

// scholarship is carried by the raw BU only, never the prep bonus.
func scholarship(c engine.Contract, a engine.CourseAssignment) decimal.Decimal {
	if c.Status.Terminal() {
		return decimal.Zero
	}
	return a.BU.Mul(c.ScholarshipPerBU)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
