package reportsvc

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/scope"
	"github.com/trezcool/maabara/core/session"
	"github.com/trezcool/maabara/core/student"
	inmemdb "github.com/trezcool/maabara/storage/database/inmem"
)

func newTestService(t *testing.T) (*service, *inmemdb.DB) {
	t.Helper()
	db := inmemdb.Open()
	return NewService(
		school.NewService(inmemdb.NewSchoolRepository(db)),
		lab.NewService(inmemdb.NewLabRepository(db)),
		equipment.NewService(inmemdb.NewEquipmentRepository(db)),
		session.NewService(inmemdb.NewSessionRepository(db)),
		student.NewService(inmemdb.NewStudentRepository(db)),
	), db
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parsing csv: %v", err)
	}
	return records
}

func TestService_Generate_schools(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	admin := scope.Identity{UserID: 1, Role: scope.RoleAdmin}

	schoolSvc := svc.schoolSvc
	if _, err := schoolSvc.Create(ctx, admin, school.NewSchool{Name: "GHS Ikeja", UDISE: "12345678901", State: "Lagos"}); err != nil {
		t.Fatalf("creating school: %v", err)
	}
	if _, err := schoolSvc.Create(ctx, admin, school.NewSchool{Name: "GHS Kano", UDISE: "12345678902", State: "Kano"}); err != nil {
		t.Fatalf("creating school: %v", err)
	}

	name, data, err := svc.Generate(ctx, admin, TypeSchools, "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.HasPrefix(name, "schools_report_") || !strings.HasSuffix(name, ".csv") {
		t.Errorf("Generate() filename = %q", name)
	}
	records := parseCSV(t, data)
	if len(records) != 3 { // header + 2 rows
		t.Fatalf("Generate() rows = %d, want 3", len(records))
	}
	if records[0][1] != "Name" || records[1][1] != "GHS Ikeja" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestService_Generate_schoolsScopedToState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	admin := scope.Identity{UserID: 1, Role: scope.RoleAdmin}

	_, _ = svc.schoolSvc.Create(ctx, admin, school.NewSchool{Name: "GHS Ikeja", UDISE: "12345678901", State: "Lagos"})
	_, _ = svc.schoolSvc.Create(ctx, admin, school.NewSchool{Name: "GHS Kano", UDISE: "12345678902", State: "Kano"})

	mentor := scope.Identity{UserID: 2, Role: scope.RoleMentor, State: "Kano"}
	_, data, err := svc.Generate(ctx, mentor, TypeSchools, "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	records := parseCSV(t, data)
	if len(records) != 2 {
		t.Fatalf("Generate() rows = %d, want 2", len(records))
	}
	if records[1][3] != "Kano" {
		t.Errorf("Generate() state = %q, want Kano", records[1][3])
	}
}

func TestService_Generate_missingParameter(t *testing.T) {
	svc, _ := newTestService(t)
	admin := scope.Identity{UserID: 1, Role: scope.RoleAdmin}

	for _, typ := range []Type{TypeSession, TypeHost, TypeState, TypeDateRange, TypeStudent} {
		if _, _, err := svc.Generate(context.Background(), admin, typ, ""); err != ErrMissingParameter {
			t.Errorf("Generate(%s) error = %v, want %v", typ, err, ErrMissingParameter)
		}
	}
}

func TestService_Generate_unknownType(t *testing.T) {
	svc, _ := newTestService(t)
	admin := scope.Identity{UserID: 1, Role: scope.RoleAdmin}

	if _, _, err := svc.Generate(context.Background(), admin, Type("bogus"), ""); err != ErrUnknownType {
		t.Errorf("Generate() error = %v, want %v", err, ErrUnknownType)
	}
}

func TestService_Generate_student(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	admin := scope.Identity{UserID: 1, Role: scope.RoleAdmin}

	sch, err := svc.schoolSvc.Create(ctx, admin, school.NewSchool{Name: "GHS Ikeja", UDISE: "12345678901", State: "Lagos"})
	if err != nil {
		t.Fatalf("creating school: %v", err)
	}
	if _, err = svc.studentSvc.Create(ctx, admin, student.NewStudent{SchoolID: sch.ID, Name: "Amina Yusuf", Aadhar: "123456789012", Grade: "10"}); err != nil {
		t.Fatalf("creating student: %v", err)
	}

	_, data, err := svc.Generate(ctx, admin, TypeStudent, "123456789012")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	records := parseCSV(t, data)
	if len(records) != 2 || records[1][1] != "Amina Yusuf" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestService_Generate_studentScopedToState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	admin := scope.Identity{UserID: 1, Role: scope.RoleAdmin}

	sch, err := svc.schoolSvc.Create(ctx, admin, school.NewSchool{Name: "GHS Ikeja", UDISE: "12345678901", State: "Lagos"})
	if err != nil {
		t.Fatalf("creating school: %v", err)
	}
	if _, err = svc.studentSvc.Create(ctx, admin, student.NewStudent{SchoolID: sch.ID, Name: "Amina Yusuf", Aadhar: "123456789012", Grade: "10"}); err != nil {
		t.Fatalf("creating student: %v", err)
	}

	mentor := scope.Identity{UserID: 2, Role: scope.RoleMentor, State: "Kano"}
	if _, _, err = svc.Generate(ctx, mentor, TypeStudent, "123456789012"); err != student.ErrNotFound {
		t.Errorf("Generate() error = %v, want %v", err, student.ErrNotFound)
	}
}

func TestService_Generate_dateRange(t *testing.T) {
	svc, _ := newTestService(t)
	admin := scope.Identity{UserID: 1, Role: scope.RoleAdmin}

	if _, _, err := svc.Generate(context.Background(), admin, TypeDateRange, "not-a-range"); err != ErrBadParameter {
		t.Errorf("Generate() error = %v, want %v", err, ErrBadParameter)
	}
	if _, _, err := svc.Generate(context.Background(), admin, TypeDateRange, "2026-01-01,2026-02-01"); err != nil {
		t.Errorf("Generate() error = %v", err)
	}
}
