package model

import "strings"

// MissingValue replaces empty fields during cleaning.
const MissingValue = "Missing"

// DatasetSpec names one dataset and where its raw snapshot lives.
type DatasetSpec struct {
	Name   string `json:"name" validate:"required,max=128,excludesall=/\\"`
	Source string `json:"source" validate:"required"`
}

// RawTable points at the verbatim snapshot the acquirer stored for a dataset.
type RawTable struct {
	Dataset  string `json:"dataset"`
	Key      string `json:"key"`
	Location string `json:"location"`
	Size     int    `json:"size"`
}

// CleanedRow is one record with every field trimmed or set to MissingValue.
type CleanedRow []string

// String joins the row the way it is written to the cleaned artifact.
func (r CleanedRow) String() string {
	return strings.Join(r, ",")
}

// SchemaWarning records a raw line whose width did not match the table.
type SchemaWarning struct {
	Line     int `json:"line"`
	Fields   int `json:"fields"`
	Expected int `json:"expected"`
}

// CleanedTable is the rectangular output of the cleaner for one dataset.
type CleanedTable struct {
	Dataset  string          `json:"dataset"`
	Key      string          `json:"key"`
	Location string          `json:"location"`
	Rows     []CleanedRow    `json:"-"`
	Blank    int             `json:"blank_lines"`
	Dropped  []SchemaWarning `json:"dropped,omitempty"`
}

// Width is the field count shared by every row, or 0 for an empty table.
func (t CleanedTable) Width() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// Bytes renders the table as newline-separated comma-joined rows. Fields are
// not quoted, so a field containing a comma cannot be told apart from a
// separator when the artifact is read back.
func (t CleanedTable) Bytes() []byte {
	var b strings.Builder
	for i, row := range t.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(row.String())
	}
	return []byte(b.String())
}
