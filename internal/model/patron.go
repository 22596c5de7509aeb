package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// ImportColumns is the bulk-import CSV column order.
var ImportColumns = []string{
	"branchcode", "cardnumber", "categorycode", "dateenrolled", "dateexpiry", "email",
	"firstname", "patron_attributes", "surname", "userid", "phone", "borrowernotes",
}

type MappedPatron struct {
	BranchCode       string `json:"branchcode"`
	CategoryCode     string `json:"categorycode"`
	CardNumber       string `json:"cardnumber"`
	DateEnrolled     string `json:"dateenrolled"`
	DateExpiry       string `json:"dateexpiry"`
	Email            string `json:"email"`
	FirstName        string `json:"firstname"`
	Surname          string `json:"surname"`
	UserID           string `json:"userid"`
	PatronAttributes string `json:"patron_attributes,omitempty"`
	Phone            string `json:"phone,omitempty"`
	BorrowerNotes    string `json:"borrowernotes,omitempty"`
}

// Row returns the patron in ImportColumns order.
func (p *MappedPatron) Row() []string {
	return []string{
		p.BranchCode, p.CardNumber, p.CategoryCode, p.DateEnrolled, p.DateExpiry, p.Email,
		p.FirstName, p.PatronAttributes, p.Surname, p.UserID, p.Phone, p.BorrowerNotes,
	}
}

// ToAPIPatron converts import-file field names to the REST API's.
func (p *MappedPatron) ToAPIPatron() RemotePatron {
	patron := RemotePatron{
		"library_id":    p.BranchCode,
		"category_id":   p.CategoryCode,
		"cardnumber":    p.CardNumber,
		"date_enrolled": p.DateEnrolled,
		"expiry_date":   p.DateExpiry,
		"email":         p.Email,
		"firstname":     p.FirstName,
		"surname":       p.Surname,
		"userid":        p.UserID,
	}
	if p.Phone != "" {
		patron["phone"] = p.Phone
	}
	if p.BorrowerNotes != "" {
		patron["staff_notes"] = p.BorrowerNotes
	}
	return patron
}

// Server-managed patron fields the API rejects on write.
var ReadOnlyPatronFields = []string{"patron_id", "anonymized", "expired", "restricted", "updated_on"}

// BackupCardField holds the previous cardnumber after a badge correction.
const BackupCardField = "statistics_2"

// RemotePatron is a patron as returned by the API. It stays an open map so
// fields this tool does not know about survive a read-modify-write.
type RemotePatron map[string]any

func (p RemotePatron) str(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

func (p RemotePatron) ID() string {
	return p.str("patron_id")
}

func (p RemotePatron) CardNumber() string {
	return p.str("cardnumber")
}

func (p RemotePatron) FirstName() string {
	return p.str("firstname")
}

func (p RemotePatron) Surname() string {
	return p.str("surname")
}

func (p RemotePatron) UserID() string {
	return p.str("userid")
}

func (p RemotePatron) Clone() RemotePatron {
	return maps.Clone(p)
}

// StripReadOnly removes server-managed fields in place.
func (p RemotePatron) StripReadOnly() RemotePatron {
	for _, field := range ReadOnlyPatronFields {
		delete(p, field)
	}
	return p
}

func (p RemotePatron) String() string {
	return fmt.Sprintf("%s %s (%s)", p.FirstName(), p.Surname(), p.ID())
}
