package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradedoc/internal/models"
)

// Column keys of the back-office export.
const (
	ColTrref    = "Trref"
	ColCustno   = "Custno"
	ColCustnm   = "Custnm"
	ColTradate  = "Tradate"
	ColCurrency = "Currency"
	ColAmount   = "Amount"
	ColBencust  = "bencust"
	ColRemark   = "remark"
	ColEsdate   = "Esdate"
	ColDocument = "document"
)

// headerRows is added to a row's index to get its spreadsheet row number.
const headerRows = 2

var requiredColumns = []string{ColTrref, ColCustno, ColCustnm, ColCurrency, ColAmount, ColBencust}

// Row is one raw spreadsheet row keyed by column header.
type Row map[string]any

// get looks a column up case-insensitively.
func (r Row) get(key string) any {
	if v, ok := r[key]; ok {
		return v
	}
	for k, v := range r {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return v
		}
	}
	return nil
}

func (r Row) str(key string) string {
	return cellString(r.get(key))
}

// KeySet is a read-only view of the references already stored.
type KeySet map[string]struct{}

func (k KeySet) Has(trref string) bool {
	_, ok := k[trref]
	return ok
}

type Options struct {
	// Strict requires a document descriptor and a contract marker in the remark.
	Strict bool
}

type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}

// BatchError rejects a whole batch; nothing from it was written.
type BatchError struct {
	Errors []RowError
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, re := range e.Errors {
		parts[i] = re.String()
	}
	return "validation errors: " + strings.Join(parts, "; ")
}

type SkipReason string

const (
	SkipDuplicateInBatch SkipReason = "duplicate_in_batch"
	SkipAlreadyImported  SkipReason = "already_imported"
)

type Skip struct {
	Row    int        `json:"row"`
	Trref  string     `json:"trref"`
	Reason SkipReason `json:"reason"`
}

type Result struct {
	Drafts  []models.Transaction
	Errors  []RowError
	Skipped []Skip
}

// Err returns the aggregate error when any row failed.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &BatchError{Errors: r.Errors}
}

type Normalizer struct {
	opts Options
}

func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize validates rows in order and builds draft transactions. It has no
// side effects.
func (n *Normalizer) Normalize(rows []Row, existing KeySet) Result {
	var res Result
	seen := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		rowNum := i + headerRows
		if len(row) == 0 {
			continue
		}

		if missing := n.missingColumns(row); len(missing) > 0 {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Reason: "missing required fields: " + strings.Join(missing, ", ")})
			continue
		}

		trref := row.str(ColTrref)
		if _, dup := seen[trref]; dup {
			res.Skipped = append(res.Skipped, Skip{Row: rowNum, Trref: trref, Reason: SkipDuplicateInBatch})
			continue
		}
		seen[trref] = struct{}{}

		if existing.Has(trref) {
			res.Skipped = append(res.Skipped, Skip{Row: rowNum, Trref: trref, Reason: SkipAlreadyImported})
			continue
		}

		tx, err := n.build(row)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		res.Drafts = append(res.Drafts, tx)
	}

	return res
}

func (n *Normalizer) missingColumns(row Row) []string {
	var missing []string
	for _, col := range requiredColumns {
		if row.str(col) == "" {
			missing = append(missing, col)
		}
	}
	if n.opts.Strict && row.str(ColDocument) == "" {
		missing = append(missing, ColDocument)
	}
	return missing
}

func (n *Normalizer) build(row Row) (models.Transaction, error) {
	tradate, err := optionalDate(row, ColTradate)
	if err != nil {
		return models.Transaction{}, err
	}
	esdate, err := optionalDate(row, ColEsdate)
	if err != nil {
		return models.Transaction{}, err
	}

	amount, err := parseAmount(row.get(ColAmount))
	if err != nil {
		return models.Transaction{}, err
	}

	remark := row.str(ColRemark)
	fields := ParseRemark(remark)
	if n.opts.Strict && !fields.HasContract() {
		return models.Transaction{}, fmt.Errorf("remark has no contract reference (%q)", remark)
	}

	tx := models.Transaction{
		Trref:                row.str(ColTrref),
		Custno:               row.str(ColCustno),
		Custnm:               row.str(ColCustnm),
		Tradate:              tradate,
		Currency:             strings.ToUpper(row.str(ColCurrency)),
		Amount:               amount,
		Bencust:              row.str(ColBencust),
		Remark:               remark,
		Document:             row.str(ColDocument),
		ContractNumber:       fields.ContractNumber,
		ExpectedDeliveryDate: fields.DeliveryDate,
		Status:               models.StatusAwaitingDocuments,
	}

	// an explicit Esdate column overrides the deadline derived from the remark
	declaration := fields.DeclarationDate
	if esdate != nil {
		declaration = esdate
	}
	tx.SetDeclarationDate(declaration)

	return tx, nil
}

func optionalDate(row Row, col string) (*time.Time, error) {
	raw := row.get(col)
	if isBlank(raw) {
		return nil, nil
	}
	d, err := DecodeDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format (%v)", col, raw)
	}
	return &d, nil
}

var errNegativeAmount = errors.New("amount must not be negative")

func parseAmount(v any) (decimal.Decimal, error) {
	var (
		amount decimal.Decimal
		err    error
	)

	switch val := v.(type) {
	case float64:
		amount = decimal.NewFromFloat(val)
	case float32:
		amount = decimal.NewFromFloat32(val)
	case int:
		amount = decimal.NewFromInt(int64(val))
	case int64:
		amount = decimal.NewFromInt(val)
	case decimal.Decimal:
		amount = val
	default:
		s := strings.ReplaceAll(cellString(v), ",", "")
		s = strings.ReplaceAll(s, " ", "")
		amount, err = decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid Amount (%v)", v)
		}
	}

	if amount.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w (%s)", errNegativeAmount, amount.String())
	}
	return amount.Round(2), nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
