package mapping

import (
	"fmt"
	"strings"
	"time"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/internal/prox"
	"patron-sync/pkg/errors"

	"github.com/rs/zerolog"
)

const (
	TableCategory   = "category"
	TableDepartment = "department"
	TableMajor      = "major"
)

// Mapper turns normalized HR records into patron fields.
type Mapper struct {
	tables          *Tables
	badges          prox.IdentifierMap
	termEnd         time.Time
	today           time.Time
	branch          string
	defaultCategory string
	log             zerolog.Logger
}

func NewMapper(cfg *config.Config, tables *Tables, badges prox.IdentifierMap, termEnd time.Time) *Mapper {
	now := time.Now()
	return &Mapper{
		tables:          tables,
		badges:          badges,
		termEnd:         termEnd,
		today:           time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		branch:          cfg.Mapping.BranchCode,
		defaultCategory: cfg.Mapping.DefaultCategory,
		log:             logger.Get(),
	}
}

// WithToday pins the enrollment date and the base of one-year expirations.
func (m *Mapper) WithToday(today time.Time) *Mapper {
	m.today = today
	return m
}

// Map dispatches on the record variant.
func (m *Mapper) Map(p model.Person) (*model.MappedPatron, []errors.MappingGap) {
	switch v := p.(type) {
	case *model.Employee:
		return m.MapEmployee(v)
	case *model.Student:
		return m.MapStudent(v)
	}
	return nil, nil
}

// MapEmployee returns nil when the employee should not have a patron
// record. Gaps are logged as warnings and returned; they never drop the
// record.
func (m *Mapper) MapEmployee(e *model.Employee) (*model.MappedPatron, []errors.MappingGap) {
	if reason := EmployeeSkipReason(e); reason != "" {
		m.log.Debug().Str("username", e.Username).Str("reason", reason).Msg("Skipping employee")
		return nil, nil
	}

	var gaps []errors.MappingGap
	role, gap := m.employeeRole(e)
	if gap != nil {
		gaps = append(gaps, *gap)
	}

	if role == model.RoleInstructor &&
		e.JobProfile != model.JobProfileSpecialInstructor &&
		!m.tables.IsDepartment(e.JobProfile) {
		m.log.Warn().
			Str("username", e.Username).
			Str("job_profile", e.JobProfile).
			Msg("Instructor is not a Special Programs Instructor, check record")
	}

	category, gap := m.category(role, e.Username)
	if gap != nil {
		gaps = append(gaps, *gap)
	}

	expiry, ok := ExpirationDate(role, m.termEnd, m.today)
	if !ok {
		m.log.Warn().
			Str("username", e.Username).
			Str("term_end", m.termEnd.Format(DateLayout)).
			Msg("Term end does not fall on a standard semester end, expiring one year from today")
	}

	attributes := []string{"UNIVID:" + e.UniversalID}
	if code, gap := m.departmentCode(e); gap != nil {
		gaps = append(gaps, *gap)
	} else if code != "" {
		attributes = append(attributes, "FACDEPT:"+code)
	}

	patron := &model.MappedPatron{
		BranchCode:       m.branch,
		CategoryCode:     category,
		CardNumber:       m.cardNumber(e.UniversalID),
		DateEnrolled:     m.today.Format(DateLayout),
		DateExpiry:       expiry.Format(DateLayout),
		Email:            e.WorkEmail,
		FirstName:        e.FirstName,
		Surname:          e.LastName,
		UserID:           e.Username,
		PatronAttributes: strings.Join(attributes, ","),
		Phone:            e.WorkPhone,
	}

	m.warn(gaps)
	return patron, gaps
}

// MapStudent returns nil for students without an institutional email or a
// last name.
func (m *Mapper) MapStudent(s *model.Student) (*model.MappedPatron, []errors.MappingGap) {
	if reason := StudentSkipReason(s); reason != "" {
		m.log.Debug().Str("username", s.Username).Str("reason", reason).Msg("Skipping student")
		return nil, nil
	}

	var gaps []errors.MappingGap
	role := s.Role()

	category, gap := m.category(role, s.Username)
	if gap != nil {
		gaps = append(gaps, *gap)
	}

	expiry, _ := ExpirationDate(role, m.termEnd, m.today)

	patron := &model.MappedPatron{
		BranchCode:   m.branch,
		CategoryCode: category,
		CardNumber:   m.cardNumber(s.UniversalID),
		DateEnrolled: m.today.Format(DateLayout),
		DateExpiry:   expiry.Format(DateLayout),
		Email:        s.InstEmail,
		FirstName:    s.FirstName,
		Surname:      s.LastName,
		UserID:       s.Username,
		Phone:        s.Phone,
	}

	attributes := []string{"UNIVID:" + s.UniversalID, "STUID:" + s.StudentID}
	if role == model.RolePreCollege {
		patron.BorrowerNotes = fmt.Sprintf("Pre-College %d", m.today.Year())
	} else if code, gap := m.majorCode(s); gap != nil {
		gaps = append(gaps, *gap)
	} else if code != "" {
		attributes = append(attributes, "STUDENTMAJ:"+code)
	}
	patron.PatronAttributes = strings.Join(attributes, ",")

	m.warn(gaps)
	return patron, gaps
}

// employeeRole falls back from etype to etype_future, then to Staff.
func (m *Mapper) employeeRole(e *model.Employee) (model.Role, *errors.MappingGap) {
	label := e.Etype
	if label == "" {
		label = e.EtypeFuture
	}
	if label == "" {
		m.log.Warn().Str("username", e.Username).Msg("Employee has neither etype nor etype_future, treating as Staff")
		return model.RoleStaff, nil
	}

	role, ok := model.ParseEtype(label)
	if !ok {
		return model.RoleStaff, &errors.MappingGap{
			Table:    TableCategory,
			Username: e.Username,
			Value:    label,
			Message:  "unknown employee type",
		}
	}
	return role, nil
}

func (m *Mapper) category(role model.Role, username string) (string, *errors.MappingGap) {
	if code, ok := m.tables.Categories[role.String()]; ok && code != "" {
		return code, nil
	}
	return m.defaultCategory, &errors.MappingGap{
		Table:    TableCategory,
		Username: username,
		Value:    role.String(),
		Message:  "no patron category for role, using default",
	}
}

// prodep picks program, then department, then a job profile that is itself
// a department name.
func (m *Mapper) prodep(e *model.Employee) string {
	switch {
	case e.Program != "":
		return e.Program
	case e.Department != "":
		return e.Department
	case m.tables.IsDepartment(e.JobProfile):
		return e.JobProfile
	}
	return ""
}

func (m *Mapper) departmentCode(e *model.Employee) (string, *errors.MappingGap) {
	prodep := m.prodep(e)
	if prodep == "" {
		return "", &errors.MappingGap{
			Table:    TableDepartment,
			Username: e.Username,
			Message:  "employee has no academic program or department",
		}
	}

	code, ok := m.tables.Departments[prodep]
	if !ok {
		return "", &errors.MappingGap{
			Table:    TableDepartment,
			Username: e.Username,
			Value:    prodep,
			Message:  "no department code for program/department",
		}
	}
	return code, nil
}

// majorCode checks the primary program, then each listed program in order.
func (m *Mapper) majorCode(s *model.Student) (string, *errors.MappingGap) {
	if code, ok := m.tables.Majors[s.PrimaryProgram]; ok {
		return code, nil
	}
	for _, p := range s.Programs {
		if code, ok := m.tables.Majors[p.Program]; ok {
			return code, nil
		}
	}

	programs := make([]string, 0, len(s.Programs))
	for _, p := range s.Programs {
		programs = append(programs, p.Program)
	}
	return "", &errors.MappingGap{
		Table:    TableMajor,
		Username: s.Username,
		Value:    s.PrimaryProgram,
		Message:  fmt.Sprintf("unable to resolve major (programs: %s) for primary program", strings.Join(programs, "; ")),
	}
}

func (m *Mapper) cardNumber(universalID string) string {
	if badge, ok := m.badges.Lookup(universalID); ok {
		return badge
	}
	return strings.TrimSpace(universalID)
}

func (m *Mapper) warn(gaps []errors.MappingGap) {
	for _, gap := range gaps {
		m.log.Warn().
			Str("table", gap.Table).
			Str("username", gap.Username).
			Str("value", gap.Value).
			Msg(gap.Message)
	}
}
