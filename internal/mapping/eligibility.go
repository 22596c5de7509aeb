package mapping

import "patron-sync/internal/model"

// EmployeeSkipReason returns why an employee gets no patron record, or ""
// when the employee is eligible.
func EmployeeSkipReason(e *model.Employee) string {
	switch {
	case !bool(e.ActiveStatus):
		return "inactive"
	case e.WorkEmail == "":
		return "no work email"
	case model.IsStudentEtype(e.Etype):
		return "student employee type"
	case e.IsContractor():
		return "contractor"
	case e.JobProfile == model.JobProfileInactiveInstructor:
		return "inactive special programs instructor"
	}
	return ""
}

func StudentSkipReason(s *model.Student) string {
	switch {
	case s.InstEmail == "":
		return "no institutional email"
	case s.LastName == "":
		return "no last name"
	}
	return ""
}

// ReconcileSkipReason is the narrower filter applied before existing
// patrons are checked: contractors, student employee records and students
// without an institutional email.
func ReconcileSkipReason(p model.Person) string {
	switch v := p.(type) {
	case *model.Employee:
		if model.IsStudentEtype(v.Etype) {
			return "student employee type"
		}
		if v.IsContractor() {
			return "contractor"
		}
	case *model.Student:
		if v.InstEmail == "" {
			return "no institutional email"
		}
	}
	return ""
}
