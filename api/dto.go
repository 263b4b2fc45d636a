/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Posting:     factory.PostingJSON (request and response)
  Offering:    OfferingRequest, OfferingDTO, AllocationDTO
  Description: DescriptionRequest, DescriptionDTO
  Contract:    CreateContractRequest, TransitionRequest, ReviseAssignmentsRequest,
               ContractDTO, AssignmentDTO, CompensationDTO
  TUG:         TUGRequest, TUGDTO

VALIDATION:
  Request types carry validator/v10 struct tags; decode() in validate.go runs
  them and reports field names by their JSON tag.

DECIMALS:
  BU and hours are decimal strings ("5.34"). Money is formatted with exactly two
  decimal places ("534.00").

SEE ALSO:
  - handlers.go: Uses these types
  - factory/posting.go: PostingJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ta-engine/engine"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// OfferingRequest creates or updates an offering's facts and extra BU.
type OfferingRequest struct {
	ID              string          `json:"id" validate:"required"`
	Unit            string          `json:"unit" validate:"required"`
	Semester        string          `json:"semester" validate:"required,semester"`
	Subject         string          `json:"subject" validate:"required"`
	Number          string          `json:"number" validate:"required"`
	Section         string          `json:"section"`
	EnrollmentTotal int             `json:"enrollment_total" validate:"gte=0"`
	EnrollmentCap   int             `json:"enrollment_cap" validate:"gte=0"`
	HasLabs         bool            `json:"has_labs"`
	IsWritingCourse bool            `json:"is_writing_course"`
	ExtraBU         decimal.Decimal `json:"extra_bu"`
}

// DescriptionRequest creates or updates a duty description.
type DescriptionRequest struct {
	ID              string `json:"id" validate:"required"`
	Unit            string `json:"unit" validate:"required"`
	Description     string `json:"description" validate:"required"`
	IsLabOrTutorial bool   `json:"is_lab_or_tutorial"`
	Hidden          bool   `json:"hidden"`
}

// CreateContractRequest creates a NEW contract for a chosen applicant.
type CreateContractRequest struct {
	ApplicationID string `json:"application_id" validate:"required"`
	PersonID      string `json:"person_id" validate:"required"`
	EmployeeID    string `json:"employee_id"`
	Name          string `json:"name" validate:"required"`
	Category      string `json:"category" validate:"required,oneof=GTA1 GTA2 UTA ETA"`
	Deadline      string `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Comments      string `json:"comments,omitempty"`
}

// TransitionRequest moves a contract along the state machine.
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=OPN ACC REJ SGN CAN"`
}

// AssignmentRequest is one course assignment of a revision.
type AssignmentRequest struct {
	OfferingID    string          `json:"offering_id" validate:"required"`
	BU            decimal.Decimal `json:"bu"`
	DescriptionID string          `json:"description_id" validate:"required"`
}

// ReviseAssignmentsRequest replaces a contract's assignment set. Reopen must
// be set to edit a signed, rejected or cancelled contract.
type ReviseAssignmentsRequest struct {
	Assignments []AssignmentRequest `json:"assignments" validate:"dive"`
	Reopen      bool                `json:"reopen"`
}

// DutyHoursDTO is the declared time of one TUG category.
type DutyHoursDTO struct {
	Weekly decimal.Decimal `json:"weekly"`
	Total  decimal.Decimal `json:"total"`
	Label  string          `json:"label,omitempty"`
}

// TUGRequest is a Time Use Guideline form. Categories left out keep their
// defaults (zero, or the pre-populated holiday hours).
type TUGRequest struct {
	Hours map[string]DutyHoursDTO `json:"hours" validate:"dive,keys,duty,endkeys"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// OfferingDTO represents an offering in API responses.
type OfferingDTO struct {
	ID              string          `json:"id"`
	Unit            string          `json:"unit"`
	Semester        string          `json:"semester"`
	Course          string          `json:"course"`
	EnrollmentTotal int             `json:"enrollment_total"`
	EnrollmentCap   int             `json:"enrollment_cap"`
	HasLabs         bool            `json:"has_labs"`
	IsWritingCourse bool            `json:"is_writing_course"`
	ExtraBU         decimal.Decimal `json:"extra_bu"`
}

// DescriptionDTO represents a duty description.
type DescriptionDTO struct {
	ID              string `json:"id"`
	Unit            string `json:"unit"`
	Description     string `json:"description"`
	IsLabOrTutorial bool   `json:"is_lab_or_tutorial"`
	Hidden          bool   `json:"hidden"`
}

// AllocationDTO is the entitlement summary of one offering.
type AllocationDTO struct {
	OfferingID      string          `json:"offering_id"`
	Course          string          `json:"course"`
	EnrollmentTotal int             `json:"enrollment_total"`
	EnrollmentCap   int             `json:"enrollment_cap"`
	HasLabs         bool            `json:"has_labs"`
	DefaultBU       decimal.Decimal `json:"default_bu"`
	ExtraBU         decimal.Decimal `json:"extra_bu"`
	RequiredBU      decimal.Decimal `json:"required_bu"`
	RequiredAtCap   decimal.Decimal `json:"required_at_cap"`
	AssignedBU      decimal.Decimal `json:"assigned_bu"`
	Difference      decimal.Decimal `json:"difference"`
	ActiveTAs       int             `json:"active_tas"`
}

// AssignmentDTO is one course assignment with its derived figures.
type AssignmentDTO struct {
	ID              string          `json:"id"`
	OfferingID      string          `json:"offering_id"`
	BU              decimal.Decimal `json:"bu"`
	PrepBU          decimal.Decimal `json:"prep_bu"`
	TotalBU         decimal.Decimal `json:"total_bu"`
	Pay             string          `json:"pay"`
	DescriptionID   string          `json:"description_id"`
	Description     string          `json:"description"`
	IsLabOrTutorial bool            `json:"is_lab_or_tutorial"`
}

// CompensationDTO is the money summary of a contract.
type CompensationDTO struct {
	BU                  decimal.Decimal `json:"bu"`
	PrepBU              decimal.Decimal `json:"prep_bu"`
	TotalBU             decimal.Decimal `json:"total_bu"`
	TotalPay            string          `json:"total_pay"`
	ScholarshipPay      string          `json:"scholarship_pay"`
	GrandTotal          string          `json:"grand_total"`
	PayPeriods          decimal.Decimal `json:"pay_periods"`
	BiweeklyPay         string          `json:"biweekly_pay"`
	BiweeklyScholarship string          `json:"biweekly_scholarship"`
}

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID               string           `json:"id"`
	PostingID        string           `json:"posting_id"`
	ApplicationID    string           `json:"application_id"`
	PersonID         string           `json:"person_id"`
	EmployeeID       string           `json:"employee_id,omitempty"`
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	CategoryLabel    string           `json:"category_label"`
	Status           string           `json:"status"`
	PayPerBU         string           `json:"pay_per_bu"`
	ScholarshipPerBU string           `json:"scholarship_per_bu"`
	AccountID        string           `json:"account_id"`
	AppointmentStart string           `json:"appointment_start,omitempty"`
	AppointmentEnd   string           `json:"appointment_end,omitempty"`
	PayStart         string           `json:"pay_start,omitempty"`
	PayEnd           string           `json:"pay_end,omitempty"`
	Deadline         string           `json:"deadline,omitempty"`
	Comments         string           `json:"comments,omitempty"`
	Assignments      []AssignmentDTO  `json:"assignments"`
	Compensation     *CompensationDTO `json:"compensation,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TUGDTO is a validated Time Use Guideline.
type TUGDTO struct {
	ContractID   string                  `json:"contract_id"`
	OfferingID   string                  `json:"offering_id"`
	BU           decimal.Decimal         `json:"bu"`
	MaxHours     decimal.Decimal         `json:"max_hours"`
	HolidayHours decimal.Decimal         `json:"holiday_hours"`
	TotalHours   decimal.Decimal         `json:"total_hours"`
	Hours        map[string]DutyHoursDTO `json:"hours"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toOffering(req OfferingRequest) engine.Offering {
	return engine.Offering{
		ID:              engine.OfferingID(req.ID),
		UnitLabel:       req.Unit,
		Semester:        engine.SemesterCode(req.Semester),
		Subject:         req.Subject,
		Number:          req.Number,
		Section:         req.Section,
		EnrollmentTotal: req.EnrollmentTotal,
		EnrollmentCap:   req.EnrollmentCap,
		HasLabs:         req.HasLabs,
		IsWritingCourse: req.IsWritingCourse,
		ExtraBU:         req.ExtraBU,
	}
}

func toOfferingDTO(o engine.Offering) OfferingDTO {
	return OfferingDTO{
		ID:              string(o.ID),
		Unit:            o.UnitLabel,
		Semester:        string(o.Semester),
		Course:          o.Name(),
		EnrollmentTotal: o.EnrollmentTotal,
		EnrollmentCap:   o.EnrollmentCap,
		HasLabs:         o.HasLabs,
		IsWritingCourse: o.IsWritingCourse,
		ExtraBU:         o.ExtraBU,
	}
}

func toDescriptionDTO(d engine.DutyDescription) DescriptionDTO {
	return DescriptionDTO{
		ID:              string(d.ID),
		Unit:            d.UnitLabel,
		Description:     d.Description,
		IsLabOrTutorial: d.IsLabOrTutorial,
		Hidden:          d.Hidden,
	}
}

func toAllocationDTO(a engine.Allocation) AllocationDTO {
	return AllocationDTO{
		OfferingID:      string(a.Offering.ID),
		Course:          a.Offering.Name(),
		EnrollmentTotal: a.Offering.EnrollmentTotal,
		EnrollmentCap:   a.Offering.EnrollmentCap,
		HasLabs:         a.Offering.HasLabs,
		DefaultBU:       a.DefaultBU,
		ExtraBU:         a.Offering.ExtraBU,
		RequiredBU:      a.RequiredBU,
		RequiredAtCap:   a.RequiredAtCap,
		AssignedBU:      a.AssignedBU,
		Difference:      a.Difference,
		ActiveTAs:       a.ActiveTAs,
	}
}

func toContractDTO(s engine.ContractSummary) ContractDTO {
	c, p, comp := s.Contract, s.Posting, s.Compensation
	dto := ContractDTO{
		ID:               string(c.ID),
		PostingID:        string(c.PostingID),
		ApplicationID:    string(c.ApplicationID),
		PersonID:         string(c.PersonID),
		EmployeeID:       c.EmployeeID,
		Name:             c.Name,
		Category:         string(c.Category),
		CategoryLabel:    c.Category.Label(),
		Status:           string(c.Status),
		PayPerBU:         engine.FormatMoney(c.PayPerBU),
		ScholarshipPerBU: engine.FormatMoney(c.ScholarshipPerBU),
		AccountID:        c.AccountID,
		AppointmentStart: formatDate(c.AppointmentStart),
		AppointmentEnd:   formatDate(c.AppointmentEnd),
		PayStart:         formatDate(c.PayStart),
		PayEnd:           formatDate(c.PayEnd),
		Deadline:         formatDate(c.Deadline),
		Comments:         c.Comments,
		Assignments:      make([]AssignmentDTO, len(c.Assignments)),
		Compensation: &CompensationDTO{
			BU:                  comp.BU,
			PrepBU:              comp.PrepBU,
			TotalBU:             comp.TotalBU,
			TotalPay:            engine.FormatMoney(comp.TotalPay),
			ScholarshipPay:      engine.FormatMoney(comp.ScholarshipPay),
			GrandTotal:          engine.FormatMoney(comp.GrandTotal),
			PayPeriods:          comp.PayPeriods,
			BiweeklyPay:         engine.FormatMoney(comp.BiweeklyPay),
			BiweeklyScholarship: engine.FormatMoney(comp.BiweeklyScholarship),
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for i, a := range c.Assignments {
		dto.Assignments[i] = AssignmentDTO{
			ID:              string(a.ID),
			OfferingID:      string(a.OfferingID),
			BU:              a.BU,
			PrepBU:          a.PrepBU(p),
			TotalBU:         c.TotalBU(p, a),
			Pay:             engine.FormatMoney(engine.AssignmentPay(c, p, a)),
			DescriptionID:   string(a.Description.ID),
			Description:     a.Description.Description,
			IsLabOrTutorial: a.Description.IsLabOrTutorial,
		}
	}
	return dto
}

func toTUGDTO(t *engine.TUG) TUGDTO {
	dto := TUGDTO{
		ContractID:   string(t.ContractID),
		OfferingID:   string(t.OfferingID),
		BU:           t.BU,
		MaxHours:     t.MaxHours(),
		HolidayHours: t.HolidayHours(),
		TotalHours:   t.TotalHours(),
		Hours:        make(map[string]DutyHoursDTO, len(engine.Duties)),
	}
	for _, d := range engine.Duties {
		h := t.Hours[d]
		dto.Hours[string(d)] = DutyHoursDTO{Weekly: h.Weekly, Total: h.Total, Label: h.Label}
	}
	return dto
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
