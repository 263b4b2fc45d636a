package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/ta-engine/engine"
)

var reportHeader = []string{
	"Course", "Enrollment", "Capacity", "Labs", "Default BU", "Extra BU",
	"Required BU", "Required At Cap", "Assigned BU", "Difference", "TAs",
}

// AllocationReport renders the entitlement summaries of a posting as a
// workbook with one sheet named after the posting.
func AllocationReport(p engine.Posting, allocations []engine.Allocation) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := SheetName(p)

	idx, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if sheet != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "B", "K", 14)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	header := make([]any, len(reportHeader))
	for i, h := range reportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(reportHeader))
	f.SetCellStyle(sheet, "A1", last+"1", headerStyle)

	for i, a := range allocations {
		o := a.Offering
		labs := "N"
		if o.HasLabs {
			labs = "Y"
		}
		row := []any{
			o.Name(),
			o.EnrollmentTotal,
			o.EnrollmentCap,
			labs,
			a.DefaultBU.InexactFloat64(),
			o.ExtraBU.InexactFloat64(),
			a.RequiredBU.InexactFloat64(),
			a.RequiredAtCap.InexactFloat64(),
			a.AssignedBU.InexactFloat64(),
			a.Difference.InexactFloat64(),
			a.ActiveTAs,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// WriteAllocationReport renders the report and writes the .xlsx bytes.
func WriteAllocationReport(w io.Writer, p engine.Posting, allocations []engine.Allocation) error {
	f, err := AllocationReport(p, allocations)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SheetName is the worksheet name of a posting ("CMPT 1234").
func SheetName(p engine.Posting) string {
	name := p.UnitLabel + " " + string(p.Semester)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
