package mapping

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/internal/prox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, time.August, 15, 0, 0, 0, 0, time.UTC)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return d
}

func newTestMapper(t *testing.T, badges prox.IdentifierMap, termEnd string) *Mapper {
	t.Helper()
	tables, err := DefaultTables()
	require.NoError(t, err)
	return NewMapper(config.Default(), tables, badges, date(t, termEnd)).WithToday(today)
}

func validEmployee() *model.Employee {
	return &model.Employee{
		Identity: model.Identity{
			Username:    "alee",
			FirstName:   "Ann",
			LastName:    "Lee",
			UniversalID: "1000001",
		},
		EmployeeID:   "E1",
		ActiveStatus: true,
		Etype:        model.EtypeStaff,
		Department:   "Libraries",
		WorkEmail:    "alee@example.edu",
		WorkPhone:    "555-0100",
	}
}

func validStudent() *model.Student {
	return &model.Student{
		Identity: model.Identity{
			Username:    "bchen",
			FirstName:   "Bo",
			LastName:    "Chen",
			UniversalID: "1000002",
		},
		StudentID:      "S2",
		AcademicLevel:  "Undergraduate",
		InstEmail:      "bchen@example.edu",
		PrimaryProgram: "Animation",
	}
}

func TestExpirationDate(t *testing.T) {
	oneYear := today.AddDate(1, 0, 0).Format(DateLayout)

	tests := []struct {
		name    string
		role    model.Role
		termEnd string
		want    string
		ok      bool
	}{
		{"instructor december", model.RoleInstructor, "2024-12-16", "2024-12-31", true},
		{"instructor february leap", model.RoleInstructor, "2024-02-10", "2024-02-29", true},
		{"instructor april", model.RoleInstructor, "2024-04-01", "2024-04-30", true},
		{"staff", model.RoleStaff, "2024-12-16", oneYear, true},
		{"contractor", model.RoleContractor, "2024-05-20", oneYear, true},
		{"faculty may", model.RoleFaculty, "2024-05-20", "2024-05-31", true},
		{"faculty august", model.RoleFaculty, "2024-08-09", "2024-08-31", true},
		{"faculty december", model.RoleFaculty, "2024-12-16", "2025-01-31", true},
		{"faculty july", model.RoleFaculty, "2024-07-01", oneYear, false},
		{"undergraduate", model.RoleUndergraduate, "2024-12-16", "2024-12-16", true},
		{"graduate", model.RoleGraduate, "2024-05-10", "2024-05-10", true},
		{"pre-college", model.RolePreCollege, "2024-07-26", "2024-07-26", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExpirationDate(tt.role, date(t, tt.termEnd), today)
			assert.Equal(t, tt.want, got.Format(DateLayout))
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestMapEmployee(t *testing.T) {
	m := newTestMapper(t, prox.IdentifierMap{"1000001": "57426"}, "2024-12-16")

	patron, gaps := m.MapEmployee(validEmployee())
	require.NotNil(t, patron)
	assert.Empty(t, gaps)

	assert.Equal(t, &model.MappedPatron{
		BranchCode:       "SF",
		CategoryCode:     "STAFF",
		CardNumber:       "57426",
		DateEnrolled:     "2024-08-15",
		DateExpiry:       "2025-08-15",
		Email:            "alee@example.edu",
		FirstName:        "Ann",
		Surname:          "Lee",
		UserID:           "alee",
		PatronAttributes: "UNIVID:1000001,FACDEPT:a",
		Phone:            "555-0100",
	}, patron)
}

func TestMapEmployee_CardNumberFallsBackToUniversalID(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")

	patron, _ := m.MapEmployee(validEmployee())
	require.NotNil(t, patron)
	assert.Equal(t, "1000001", patron.CardNumber)
}

func TestMapEmployee_Skips(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")

	tests := []struct {
		name   string
		modify func(e *model.Employee)
	}{
		{"inactive", func(e *model.Employee) { e.ActiveStatus = false }},
		{"inactive with everything else valid", func(e *model.Employee) {
			e.ActiveStatus = false
			e.Etype = model.EtypeFaculty
			e.Program = "Architecture"
		}},
		{"no work email", func(e *model.Employee) { e.WorkEmail = "" }},
		{"student etype", func(e *model.Employee) { e.Etype = "Students" }},
		{"contractor etype", func(e *model.Employee) { e.Etype = model.EtypeContractor }},
		{"temporary access", func(e *model.Employee) { e.JobProfile = model.JobProfileTemporaryAccess }},
		{"contingent", func(e *model.Employee) { e.IsContingent = true }},
		{"inactive instructor", func(e *model.Employee) { e.JobProfile = model.JobProfileInactiveInstructor }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEmployee()
			tt.modify(e)
			patron, gaps := m.MapEmployee(e)
			assert.Nil(t, patron)
			assert.Nil(t, gaps)
		})
	}
}

func TestMapEmployee_Prodep(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")

	tests := []struct {
		name   string
		modify func(e *model.Employee)
		want   string
	}{
		{"program wins over department", func(e *model.Employee) {
			e.Program = "Architecture"
			e.Department = "Libraries"
		}, "UNIVID:1000001,FACDEPT:1"},
		{"department", func(e *model.Employee) {}, "UNIVID:1000001,FACDEPT:a"},
		{"job profile as department", func(e *model.Employee) {
			e.Department = ""
			e.JobProfile = "Writing"
		}, "UNIVID:1000001,FACDEPT:7"},
		{"intentional empty code", func(e *model.Employee) {
			e.Department = "All Faculty"
		}, "UNIVID:1000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEmployee()
			tt.modify(e)
			patron, gaps := m.MapEmployee(e)
			require.NotNil(t, patron)
			assert.Empty(t, gaps)
			assert.Equal(t, tt.want, patron.PatronAttributes)
		})
	}
}

func TestMapEmployee_NoProdepIsGap(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")
	e := validEmployee()
	e.Department = ""
	e.JobProfile = "Barista"

	patron, gaps := m.MapEmployee(e)
	require.NotNil(t, patron)
	require.Len(t, gaps, 1)
	assert.Equal(t, TableDepartment, gaps[0].Table)
	assert.Empty(t, gaps[0].Value)
	assert.Equal(t, "UNIVID:1000001", patron.PatronAttributes)
}

func TestMapEmployee_Roles(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")

	faculty := validEmployee()
	faculty.Etype = model.EtypeFaculty
	patron, _ := m.MapEmployee(faculty)
	require.NotNil(t, patron)
	assert.Equal(t, "FACULTY", patron.CategoryCode)
	assert.Equal(t, "2025-01-31", patron.DateExpiry)

	instructor := validEmployee()
	instructor.Etype = model.EtypeInstructors
	instructor.JobProfile = model.JobProfileSpecialInstructor
	patron, _ = m.MapEmployee(instructor)
	require.NotNil(t, patron)
	assert.Equal(t, "SPECIALFAC", patron.CategoryCode)
	assert.Equal(t, "2024-12-31", patron.DateExpiry)

	future := validEmployee()
	future.Etype = ""
	future.EtypeFuture = model.EtypeFaculty
	patron, _ = m.MapEmployee(future)
	require.NotNil(t, patron)
	assert.Equal(t, "FACULTY", patron.CategoryCode)

	none := validEmployee()
	none.Etype = ""
	patron, gaps := m.MapEmployee(none)
	require.NotNil(t, patron)
	assert.Empty(t, gaps)
	assert.Equal(t, "STAFF", patron.CategoryCode)

	unknown := validEmployee()
	unknown.Etype = "Volunteer"
	patron, gaps = m.MapEmployee(unknown)
	require.NotNil(t, patron)
	require.Len(t, gaps, 1)
	assert.Equal(t, TableCategory, gaps[0].Table)
	assert.Equal(t, "STAFF", patron.CategoryCode)
}

func TestMapEmployee_MissingCategoryDefaults(t *testing.T) {
	tables, err := DefaultTables()
	require.NoError(t, err)
	delete(tables.Categories, "Faculty")

	m := NewMapper(config.Default(), tables, nil, date(t, "2024-12-16")).WithToday(today)
	e := validEmployee()
	e.Etype = model.EtypeFaculty

	patron, gaps := m.MapEmployee(e)
	require.NotNil(t, patron)
	require.Len(t, gaps, 1)
	assert.Equal(t, TableCategory, gaps[0].Table)
	assert.Equal(t, "STAFF", patron.CategoryCode)
}

func TestMapStudent(t *testing.T) {
	m := newTestMapper(t, prox.IdentifierMap{"1000002": "9001"}, "2024-12-16")

	patron, gaps := m.MapStudent(validStudent())
	require.NotNil(t, patron)
	assert.Empty(t, gaps)

	assert.Equal(t, "UNDERGRAD", patron.CategoryCode)
	assert.Equal(t, "9001", patron.CardNumber)
	assert.Equal(t, "2024-12-16", patron.DateExpiry)
	assert.Equal(t, "UNIVID:1000002,STUID:S2,STUDENTMAJ:1", patron.PatronAttributes)
	assert.Empty(t, patron.BorrowerNotes)
}

func TestMapStudent_MajorFromSecondaryProgram(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")
	s := validStudent()
	s.PrimaryProgram = "Something New"
	s.Programs = []model.Program{{Program: "Unknown"}, {Program: "Glass"}, {Program: "Film"}}

	patron, gaps := m.MapStudent(s)
	require.NotNil(t, patron)
	assert.Empty(t, gaps)
	assert.Equal(t, "UNIVID:1000002,STUID:S2,STUDENTMAJ:8", patron.PatronAttributes)
}

func TestMapStudent_UnmappedMajor(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")
	s := validStudent()
	s.PrimaryProgram = "Something New"

	patron, gaps := m.MapStudent(s)
	require.NotNil(t, patron)
	require.Len(t, gaps, 1)
	assert.Equal(t, TableMajor, gaps[0].Table)
	assert.Equal(t, "Something New", gaps[0].Value)
	assert.Equal(t, "UNIVID:1000002,STUID:S2", patron.PatronAttributes)
}

func TestMapStudent_PreCollege(t *testing.T) {
	m := newTestMapper(t, nil, "2024-07-26")
	s := validStudent()
	s.AcademicLevel = "Pre-College"
	s.PrimaryProgram = "Something New"

	patron, gaps := m.MapStudent(s)
	require.NotNil(t, patron)
	assert.Empty(t, gaps)
	assert.Equal(t, "SPECIALSTU", patron.CategoryCode)
	assert.Equal(t, "Pre-College 2024", patron.BorrowerNotes)
	assert.Equal(t, "UNIVID:1000002,STUID:S2", patron.PatronAttributes)
	assert.Equal(t, "2024-07-26", patron.DateExpiry)
}

func TestMapStudent_Skips(t *testing.T) {
	m := newTestMapper(t, nil, "2024-12-16")

	noEmail := validStudent()
	noEmail.InstEmail = ""
	noEmail.PrimaryProgram = "Animation"
	patron, _ := m.MapStudent(noEmail)
	assert.Nil(t, patron)

	noSurname := validStudent()
	noSurname.LastName = ""
	patron, _ = m.MapStudent(noSurname)
	assert.Nil(t, patron)
}

func TestMap_ThreeEmployeesOneMapped(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter("info", "json", &buf)
	t.Cleanup(func() { logger.Init("info", "console") })

	m := newTestMapper(t, nil, "2024-12-16")

	inactive := validEmployee()
	inactive.ActiveStatus = false

	contractor := validEmployee()
	contractor.Username = "temp"
	contractor.Etype = model.EtypeContractor

	unmapped := validEmployee()
	unmapped.Username = "newdept"
	unmapped.Department = "Department of Novelty"

	var mapped []*model.MappedPatron
	for _, p := range []model.Person{inactive, contractor, unmapped} {
		if patron, _ := m.Map(p); patron != nil {
			mapped = append(mapped, patron)
		}
	}

	require.Len(t, mapped, 1)
	assert.Equal(t, "newdept", mapped[0].UserID)
	assert.Equal(t, "UNIVID:1000001", mapped[0].PatronAttributes)
	assert.NotContains(t, mapped[0].PatronAttributes, "FACDEPT:")
	assert.Contains(t, buf.String(), "Department of Novelty")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestFacultyOffCycleTermEndWarns(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter("info", "json", &buf)
	t.Cleanup(func() { logger.Init("info", "console") })

	m := newTestMapper(t, nil, "2024-07-01")
	e := validEmployee()
	e.Etype = model.EtypeFaculty

	patron, _ := m.MapEmployee(e)
	require.NotNil(t, patron)
	assert.Equal(t, "2025-08-15", patron.DateExpiry)
	assert.Contains(t, buf.String(), "standard semester")
}

func TestLoadTables_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
departments:
  "Department of Novelty": "b"
majors:
  "Animation": "99"
`), 0644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	assert.Equal(t, "b", tables.Departments["Department of Novelty"])
	assert.Equal(t, "99", tables.Majors["Animation"])
	assert.Equal(t, "1", tables.Departments["Architecture"])
	assert.Equal(t, "STAFF", tables.Categories["Staff"])

	_, err = LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReconcileSkipReason(t *testing.T) {
	contractor := validEmployee()
	contractor.IsContingent = true
	assert.Equal(t, "contractor", ReconcileSkipReason(contractor))

	inactive := validEmployee()
	inactive.ActiveStatus = false
	assert.Empty(t, ReconcileSkipReason(inactive))

	student := validStudent()
	student.InstEmail = ""
	assert.Equal(t, "no institutional email", ReconcileSkipReason(student))
}
