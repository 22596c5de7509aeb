package workday

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type Normalizer struct {
	validate *validator.Validate
	log      zerolog.Logger
}

func NewNormalizer() *Normalizer {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Normalizer{
		validate: validate,
		log:      logger.Get(),
	}
}

// Entries unwraps an HR export, which is either a bare list of records or
// an object holding them under Report_Entry.
func Entries(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty HR export", errors.ErrInvalidFileFormat)
	}

	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal HR export: %w", err)
		}
		return entries, nil
	case '{':
		var report struct {
			ReportEntry []json.RawMessage `json:"Report_Entry"`
		}
		if err := json.Unmarshal(trimmed, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal HR export: %w", err)
		}
		if report.ReportEntry == nil {
			return nil, fmt.Errorf("%w: could not find a list of people in the HR export, is this the right file?", errors.ErrInvalidFileFormat)
		}
		return report.ReportEntry, nil
	}

	return nil, fmt.Errorf("%w: HR export is neither a list nor a report object", errors.ErrInvalidFileFormat)
}

// LoadFile reads and normalizes an HR export from disk.
func (n *Normalizer) LoadFile(path string) ([]model.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to open HR export: %w", err)
	}
	defer file.Close()

	return n.Load(file)
}

// Load normalizes every record in an HR export. Records that fail
// validation are logged and left out; the rest keep their input order.
func (n *Normalizer) Load(r io.Reader) ([]model.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read HR export: %w", err)
	}

	entries, err := Entries(data)
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(entries))
	for i, raw := range entries {
		person, err := n.Normalize(raw)
		if err != nil {
			n.log.Error().Err(err).Int("index", i).Msg("Skipping invalid HR record")
			continue
		}
		records = append(records, model.Record{Person: person, Raw: raw})
	}

	n.log.Debug().Int("entries", len(entries)).Int("valid", len(records)).Msg("Loaded HR export")

	return records, nil
}

// Normalize decodes one HR record. The presence of employee_id or
// student_id decides the variant.
func (n *Normalizer) Normalize(raw json.RawMessage) (model.Person, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal HR record: %w", err)
	}

	var person model.Person
	switch {
	case keys["employee_id"] != nil:
		person = &model.Employee{}
	case keys["student_id"] != nil:
		person = &model.Student{}
	default:
		return nil, errors.ValidationError{
			Field:   "employee_id",
			Value:   nil,
			Message: "record has neither employee_id nor student_id",
		}
	}

	if err := json.Unmarshal(raw, person); err != nil {
		return nil, fmt.Errorf("failed to unmarshal HR record: %w", err)
	}

	if err := n.validateStruct(person); err != nil {
		return nil, err
	}

	return person, nil
}

func (n *Normalizer) validateStruct(person model.Person) error {
	err := n.validate.Struct(person)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate HR record: %w", err)
	}

	first := fieldErrs[0]
	return errors.ValidationError{
		Field:   first.Field(),
		Value:   first.Value(),
		Message: validationMessage(first),
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}
