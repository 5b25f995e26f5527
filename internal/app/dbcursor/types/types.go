package types

import (
	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
)

type QueryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// DecimalParam is a parameter object bound as decimal text rounded to
// DecimalPlaces and limited to MaxDigits digits.
type DecimalParam struct {
	Decimal       string `json:"decimal"`
	MaxDigits     int    `json:"max_digits"`
	DecimalPlaces int    `json:"decimal_places"`
}

type ExecuteManyRequest struct {
	SQL    string  `json:"sql"`
	Params [][]any `json:"params"`
}

type CallProcRequest struct {
	Name   string `json:"name"`
	Params []any  `json:"params"`
}

type QueryResponse struct {
	Columns  []cursor.Column `json:"columns"`
	Rows     [][]any         `json:"rows"`
	RowCount int64           `json:"rowcount"`
	// Sets holds the result sets after the first one.
	Sets []QueryResponse `json:"sets,omitempty"`
}

type StatusResponse struct {
	Vendor        string `json:"vendor"`
	Dirty         bool   `json:"dirty"`
	Debug         bool   `json:"debug"`
	InTransaction bool   `json:"in_transaction"`
}

type ErrorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
