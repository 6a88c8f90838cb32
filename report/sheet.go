package report

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wippyai/sheet-probe/errors"
)

// ClassifiedSheet is one element of the provider's result array.
type ClassifiedSheet struct {
	FirstRowFirstColContent *string  `json:"first_row_first_col_content" jsonschema:"description=Content of the first cell in the first used column"`
	LastRowFirstColContent  *string  `json:"last_row_first_col_content" jsonschema:"description=Content of the last row in the first used column"`
	DataTypeMix             *float64 `json:"data_type_mix,omitempty" jsonschema:"minimum=0,maximum=1"`
	SheetName               string   `json:"sheet_name"`
	Visible                 string   `json:"visible" jsonschema:"enum=Visible,enum=Hidden,enum=VeryHidden"`
	SheetType               string   `json:"sheet_type,omitempty"`
	ClassificationReason    string   `json:"classification_reason,omitempty"`
	ColumnDataTypes         []any    `json:"column_data_types,omitempty"`
	Density                 float64  `json:"density" jsonschema:"minimum=0,maximum=1"`
	FirstRow                uint32   `json:"first_row"`
	FirstCol                uint32   `json:"first_col"`
	EndRow                  uint32   `json:"end_row"`
	EndCol                  uint32   `json:"end_col"`
	TotalCells              uint32   `json:"total_cells"`
	DataCells               uint32   `json:"data_cells"`
}

// Empty reports whether the sheet has no used range.
func (s ClassifiedSheet) Empty() bool {
	return s.TotalCells == 0
}

// Range returns the used range in A1 notation, or "" for an empty sheet.
func (s ClassifiedSheet) Range() string {
	if s.Empty() {
		return ""
	}
	return CellRef(s.FirstRow, s.FirstCol) + ":" + CellRef(s.EndRow, s.EndCol)
}

// CellRef converts zero-based row and column indexes to an A1 reference.
func CellRef(row, col uint32) string {
	var letters []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		letters = append(letters, byte('A'+(n-1)%26))
	}
	for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
		letters[i], letters[j] = letters[j], letters[i]
	}
	return string(letters) + strconv.FormatUint(uint64(row)+1, 10)
}

// Decode parses the provider's result text.
func Decode(text string) ([]ClassifiedSheet, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.InvalidData(errors.PhaseDecode, "empty result")
	}

	var sheets []ClassifiedSheet
	if err := json.Unmarshal([]byte(trimmed), &sheets); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "result is not a sheet list")
	}
	return sheets, nil
}
