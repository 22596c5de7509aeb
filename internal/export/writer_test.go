package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMapper struct{}

func (stubMapper) Map(p model.Person) (*model.MappedPatron, []errors.MappingGap) {
	ident := p.Ident()
	if ident.Username == "skip" {
		return nil, nil
	}
	var gaps []errors.MappingGap
	if ident.FirstName == "" {
		gaps = append(gaps, errors.MappingGap{Table: "major", Username: ident.Username})
	}
	return &model.MappedPatron{UserID: ident.Username, FirstName: ident.FirstName}, gaps
}

func record(username string, student bool) model.Record {
	ident := model.Identity{Username: username, FirstName: strings.ToUpper(username)}
	if student {
		return model.Record{Person: &model.Student{Identity: ident}}
	}
	return model.Record{Person: &model.Employee{Identity: ident}}
}

func TestNewWriter_HeaderOnEmptyOutput(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"branchcode,cardnumber,categorycode,dateenrolled,dateexpiry,email,firstname,patron_attributes,surname,userid,phone,borrowernotes\n",
		buf.String())
	assert.Zero(t, w.Rows())
}

func TestWriter_QuotesCompositeAttributes(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.Write(&model.MappedPatron{
		BranchCode:       "SF",
		CardNumber:       "57426",
		UserID:           "alee",
		PatronAttributes: "UNIVID:1000001,FACDEPT:a",
	}))
	require.NoError(t, w.Flush())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "UNIVID:1000001,FACDEPT:a", rows[1][7])
	assert.Equal(t, "alee", rows[1][9])
}

func TestWriteAll_StudentsFirst(t *testing.T) {
	var buf bytes.Buffer
	students := []model.Record{record("stu1", true), record("skip", true)}
	employees := []model.Record{record("emp1", false), record("emp2", false)}

	stats, err := WriteAll(&buf, stubMapper{}, students, employees)
	require.NoError(t, err)
	assert.Equal(t, Stats{Written: 3, Skipped: 1}, stats)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "userid", rows[0][9])
	assert.Equal(t, "stu1", rows[1][9])
	assert.Equal(t, "emp1", rows[2][9])
	assert.Equal(t, "emp2", rows[3][9])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "2024-08-15-koha-patrons.csv", FileName(time.Date(2024, 8, 15, 9, 0, 0, 0, time.UTC)))
}
