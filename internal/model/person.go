package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of patron roles. Category and expiration logic
// switch over it exhaustively.
type Role int

const (
	RoleStaff Role = iota
	RoleFaculty
	RoleInstructor
	RoleUndergraduate
	RoleGraduate
	RolePreCollege
	RoleContractor
)

// String returns the HR label, which is also the category table key.
func (r Role) String() string {
	switch r {
	case RoleStaff:
		return "Staff"
	case RoleFaculty:
		return "Faculty"
	case RoleInstructor:
		return "Instructors"
	case RoleUndergraduate:
		return "Undergraduate"
	case RoleGraduate:
		return "Graduate"
	case RolePreCollege:
		return "Pre-College"
	case RoleContractor:
		return "Contractor"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) IsStudent() bool {
	return r == RoleUndergraduate || r == RoleGraduate || r == RolePreCollege
}

const (
	EtypeStaff       = "Staff"
	EtypeFaculty     = "Faculty"
	EtypeInstructors = "Instructors"
	EtypeContractor  = "Contingent Employees/Contractors"

	JobProfileTemporaryAccess    = "Temporary System/Campus Access"
	JobProfileSpecialInstructor  = "Special Programs Instructor"
	JobProfileInactiveInstructor = "Special Programs Instructor (inactive)"
)

// IsStudentEtype reports the stray employee records that describe students.
func IsStudentEtype(etype string) bool {
	return etype == "Student" || etype == "Students"
}

// ParseEtype maps an employee type to a role. ok is false for unknown or
// student etypes.
func ParseEtype(etype string) (Role, bool) {
	switch etype {
	case EtypeStaff:
		return RoleStaff, true
	case EtypeFaculty:
		return RoleFaculty, true
	case EtypeInstructors:
		return RoleInstructor, true
	case EtypeContractor:
		return RoleContractor, true
	}
	return RoleStaff, false
}

// ParseAcademicLevel maps a student academic level to a role.
func ParseAcademicLevel(level string) (Role, bool) {
	switch level {
	case "Undergraduate":
		return RoleUndergraduate, true
	case "Graduate":
		return RoleGraduate, true
	case "Pre-College":
		return RolePreCollege, true
	}
	return RoleUndergraduate, false
}

// Identity is the capability set shared by every HR record.
type Identity struct {
	Username    string `json:"username" validate:"required"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	UniversalID string `json:"universal_id" validate:"required"`
}

type Person interface {
	Ident() Identity
}

// FlexBool decodes JSON booleans as well as the "0"/"1" strings some HR
// exports emit.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}

	raw := string(data)
	if unquoted, ok := strings.CutPrefix(raw, `"`); ok {
		raw = strings.TrimSuffix(unquoted, `"`)
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		*b = true
	case "false", "0", "no", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean value %s", data)
	}
	return nil
}

type Employee struct {
	Identity
	EmployeeID   string   `json:"employee_id" validate:"required"`
	ActiveStatus FlexBool `json:"active_status"`
	Etype        string   `json:"etype,omitempty"`
	EtypeFuture  string   `json:"etype_future,omitempty"`
	Department   string   `json:"department,omitempty"`
	Program      string   `json:"program,omitempty"`
	JobProfile   string   `json:"job_profile,omitempty"`
	WorkEmail    string   `json:"work_email,omitempty" validate:"omitempty,email"`
	WorkPhone    string   `json:"work_phone,omitempty"`
	IsContingent FlexBool `json:"is_contingent"`
}

func (e *Employee) Ident() Identity {
	return e.Identity
}

// IsContractor reports temporary and contingent workers, who never get
// library accounts.
func (e *Employee) IsContractor() bool {
	return e.Etype == EtypeContractor ||
		e.JobProfile == JobProfileTemporaryAccess ||
		bool(e.IsContingent)
}

type Program struct {
	Program     string `json:"program"`
	ProgramType string `json:"program_type,omitempty"`
	Credential  string `json:"credential,omitempty"`
}

type Student struct {
	Identity
	StudentID      string    `json:"student_id" validate:"required"`
	AcademicLevel  string    `json:"academic_level" validate:"required,oneof=Undergraduate Graduate Pre-College"`
	InstEmail      string    `json:"inst_email,omitempty" validate:"omitempty,email"`
	PrimaryProgram string    `json:"primary_program,omitempty"`
	Programs       []Program `json:"programs,omitempty"`
	Phone          string    `json:"phone,omitempty"`
}

func (s *Student) Ident() Identity {
	return s.Identity
}

func (s *Student) Role() Role {
	role, _ := ParseAcademicLevel(s.AcademicLevel)
	return role
}

// Record pairs a normalized person with the raw JSON it came from, so
// unmatched records can be written back out untouched.
type Record struct {
	Person Person
	Raw    json.RawMessage
}
