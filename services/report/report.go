// Package reportsvc renders CSV exports of the resources a caller is
// entitled to see. Rows come from the scoped resource services, so a report
// never widens the caller's visibility.
package reportsvc

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/scope"
	"github.com/trezcool/maabara/core/session"
	"github.com/trezcool/maabara/core/student"
)

type Type string

const (
	TypeSchools     Type = "schools"
	TypeLabs        Type = "labs"
	TypeEquipment   Type = "equipment"
	TypeAllocations Type = "allocations"
	TypeSessions    Type = "sessions"
	TypeSession     Type = "session"    // one session by ID
	TypeHost        Type = "host"       // sessions held by a host
	TypeState       Type = "state"      // labs in a state
	TypeDateRange   Type = "date-range" // sessions scheduled within "YYYY-MM-DD,YYYY-MM-DD"
	TypeStudent     Type = "student"    // one student by Aadhar number
)

var (
	ErrUnknownType      = errors.New("unknown report type")
	ErrMissingParameter = errors.New("this report type requires a parameter")
	ErrBadParameter     = errors.New("invalid report parameter")
)

// RequiresParameter reports whether typ cannot be generated without a
// parameter value.
func RequiresParameter(typ Type) bool {
	switch typ {
	case TypeSession, TypeHost, TypeState, TypeDateRange, TypeStudent:
		return true
	}
	return false
}

type (
	Service interface {
		// Generate renders the report as CSV and returns a file name to
		// serve it under.
		Generate(ctx context.Context, ident scope.Identity, typ Type, param string) (string, []byte, error)
	}

	service struct {
		schoolSvc  school.Service
		labSvc     lab.Service
		equipSvc   equipment.Service
		sessionSvc session.Service
		studentSvc student.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	schoolSvc school.Service,
	labSvc lab.Service,
	equipSvc equipment.Service,
	sessionSvc session.Service,
	studentSvc student.Service,
) *service {
	return &service{
		schoolSvc:  schoolSvc,
		labSvc:     labSvc,
		equipSvc:   equipSvc,
		sessionSvc: sessionSvc,
		studentSvc: studentSvc,
	}
}

func (svc *service) Generate(ctx context.Context, ident scope.Identity, typ Type, param string) (string, []byte, error) {
	if RequiresParameter(typ) && param == "" {
		return "", nil, ErrMissingParameter
	}

	var (
		records [][]string
		err     error
	)
	switch typ {
	case TypeSchools:
		records, err = svc.schoolRecords(ctx, ident)
	case TypeLabs:
		records, err = svc.labRecords(ctx, ident, lab.QueryFilter{})
	case TypeState:
		records, err = svc.labRecords(ctx, ident, lab.QueryFilter{State: param})
	case TypeEquipment:
		records, err = svc.equipmentRecords(ctx, ident)
	case TypeAllocations:
		records, err = svc.allocationRecords(ctx, ident)
	case TypeSessions:
		records, err = svc.sessionRecords(ctx, ident, session.QueryFilter{})
	case TypeSession:
		var id int
		if id, err = strconv.Atoi(param); err != nil {
			return "", nil, ErrBadParameter
		}
		records, err = svc.sessionRecords(ctx, ident, session.QueryFilter{ID: id})
	case TypeHost:
		records, err = svc.sessionRecords(ctx, ident, session.QueryFilter{Host: param})
	case TypeDateRange:
		var from, to time.Time
		if from, to, err = parseDateRange(param); err != nil {
			return "", nil, err
		}
		records, err = svc.sessionRecords(ctx, ident, session.QueryFilter{From: from, To: to})
	case TypeStudent:
		records, err = svc.studentRecords(ctx, ident, param)
	default:
		return "", nil, ErrUnknownType
	}
	if err != nil {
		return "", nil, err
	}

	data, err := writeCSV(records)
	if err != nil {
		return "", nil, err
	}
	return filename(typ), data, nil
}

func (svc *service) schoolRecords(ctx context.Context, ident scope.Identity) ([][]string, error) {
	schools, err := svc.schoolSvc.List(ctx, ident, nil)
	if err != nil {
		return nil, err
	}
	records := [][]string{{"ID", "Name", "UDISE", "State", "District", "Incharge", "Active", "Created At"}}
	for _, sch := range schools {
		records = append(records, []string{
			strconv.Itoa(sch.ID), sch.Name, sch.UDISE, sch.State, sch.District,
			sch.InchargeName, strconv.FormatBool(sch.IsActive), formatTime(sch.CreatedAt),
		})
	}
	return records, nil
}

func (svc *service) labRecords(ctx context.Context, ident scope.Identity, filter lab.QueryFilter) ([][]string, error) {
	var (
		labs []lab.Lab
		err  error
	)
	if filter.IsEmpty() {
		labs, err = svc.labSvc.List(ctx, ident, nil)
	} else {
		labs, err = svc.labSvc.Filter(ctx, ident, filter)
	}
	if err != nil {
		return nil, err
	}
	records := [][]string{{"ID", "Name", "School", "State", "Active", "Created At"}}
	for _, l := range labs {
		records = append(records, []string{
			strconv.Itoa(l.ID), l.Name, l.SchoolName, l.SchoolState,
			strconv.FormatBool(l.IsActive), formatTime(l.CreatedAt),
		})
	}
	return records, nil
}

func (svc *service) equipmentRecords(ctx context.Context, ident scope.Identity) ([][]string, error) {
	items, err := svc.equipSvc.List(ctx, ident, nil)
	if err != nil {
		return nil, err
	}
	records := [][]string{{"ID", "Name", "Quantity", "Available", "Allocated", "Active"}}
	for _, eq := range items {
		records = append(records, []string{
			strconv.Itoa(eq.ID), eq.Name, strconv.Itoa(eq.Quantity), strconv.Itoa(eq.Available),
			strconv.Itoa(eq.Allocated()), strconv.FormatBool(eq.IsActive),
		})
	}
	return records, nil
}

func (svc *service) allocationRecords(ctx context.Context, ident scope.Identity) ([][]string, error) {
	allocs, err := svc.equipSvc.ListAllocations(ctx, ident, nil)
	if err != nil {
		return nil, err
	}
	records := [][]string{{"ID", "Equipment", "Lab", "Quantity", "Active", "Created At"}}
	for _, alloc := range allocs {
		records = append(records, []string{
			strconv.Itoa(alloc.ID), alloc.EquipmentName, alloc.LabName,
			strconv.Itoa(alloc.Quantity), strconv.FormatBool(alloc.IsActive), formatTime(alloc.CreatedAt),
		})
	}
	return records, nil
}

func (svc *service) sessionRecords(ctx context.Context, ident scope.Identity, filter session.QueryFilter) ([][]string, error) {
	var (
		sessions []session.Session
		err      error
	)
	if filter.IsEmpty() {
		sessions, err = svc.sessionSvc.List(ctx, ident, nil)
	} else {
		sessions, err = svc.sessionSvc.Filter(ctx, ident, filter)
	}
	if err != nil {
		return nil, err
	}
	records := [][]string{{"ID", "Topic", "Host", "Lab", "State", "Scheduled On", "Active"}}
	for _, s := range sessions {
		records = append(records, []string{
			strconv.Itoa(s.ID), s.Topic, s.Host, s.LabName, s.SchoolState,
			formatTime(s.ScheduledOn), strconv.FormatBool(s.IsActive),
		})
	}
	return records, nil
}

func (svc *service) studentRecords(ctx context.Context, ident scope.Identity, aadhar string) ([][]string, error) {
	st, err := svc.studentSvc.GetByAadhar(ctx, ident, aadhar)
	if err != nil {
		return nil, err
	}
	return [][]string{
		{"ID", "Name", "Aadhar", "Grade", "School ID", "Active"},
		{strconv.Itoa(st.ID), st.Name, st.Aadhar, st.Grade, strconv.Itoa(st.SchoolID), strconv.FormatBool(st.IsActive)},
	}, nil
}

func parseDateRange(param string) (time.Time, time.Time, error) {
	parts := strings.Split(param, ",")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, ErrBadParameter
	}
	from, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, ErrBadParameter
	}
	to, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, ErrBadParameter
	}
	// include the whole end day
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}

func writeCSV(records [][]string) ([]byte, error) {
	var buff bytes.Buffer
	w := csv.NewWriter(&buff)
	if err := w.WriteAll(records); err != nil {
		return nil, errors.Wrap(err, "writing csv")
	}
	return buff.Bytes(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

func filename(typ Type) string {
	return fmt.Sprintf("%s_report_%s.csv", typ, time.Now().UTC().Format("20060102"))
}
