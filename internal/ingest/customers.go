package ingest

import (
	"net/mail"
	"strings"

	"tradedoc/internal/models"
)

// customerColumns maps each field to the headers accepted for it.
var customerColumns = struct {
	custno, name, email, contact, phone []string
}{
	custno:  []string{"Custno"},
	name:    []string{"Name", "Custnm"},
	email:   []string{"Email"},
	contact: []string{"ContactPerson", "contact_person"},
	phone:   []string{"PhoneNumber", "phone_number", "Phone"},
}

func (r Row) first(keys []string) string {
	for _, k := range keys {
		if v := r.str(k); v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeCustomers validates customer rows. A customer number repeated in the
// batch keeps its last row, so a later correction wins.
func NormalizeCustomers(rows []Row) ([]models.Customer, []RowError) {
	var (
		errs  []RowError
		order []string
	)
	byCustno := make(map[string]models.Customer, len(rows))

	for i, row := range rows {
		rowNum := i + headerRows
		if len(row) == 0 {
			continue
		}

		c := models.Customer{
			Custno:        row.first(customerColumns.custno),
			Name:          row.first(customerColumns.name),
			Email:         row.first(customerColumns.email),
			ContactPerson: optional(row.first(customerColumns.contact)),
			PhoneNumber:   optional(row.first(customerColumns.phone)),
		}

		var missing []string
		if c.Custno == "" {
			missing = append(missing, "Custno")
		}
		if c.Name == "" {
			missing = append(missing, "Name")
		}
		if len(missing) > 0 {
			errs = append(errs, RowError{Row: rowNum, Reason: "missing required fields: " + strings.Join(missing, ", ")})
			continue
		}
		if c.Email != "" {
			addr, err := mail.ParseAddress(c.Email)
			if err != nil {
				errs = append(errs, RowError{Row: rowNum, Reason: "invalid Email (" + c.Email + ")"})
				continue
			}
			c.Email = addr.Address
		}

		if _, seen := byCustno[c.Custno]; !seen {
			order = append(order, c.Custno)
		}
		byCustno[c.Custno] = c
	}

	out := make([]models.Customer, 0, len(order))
	for _, k := range order {
		out = append(out, byCustno[k])
	}
	return out, errs
}
