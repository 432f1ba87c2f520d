package ingest_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tradedoc/internal/ingest"
)

var _ = Describe("NormalizeCustomers", func() {
	It("accepts alternate headers and keeps the last row per customer", func() {
		customers, errs := ingest.NormalizeCustomers([]ingest.Row{
			{"Custno": "C1", "Custnm": "ABC", "Email": "old@example.com"},
			{"custno": "C2", "name": "DEF", "phone_number": "0901"},
			{"Custno": "C1", "Name": "ABC Ltd", "Email": "Ops <ops@example.com>"},
		})

		Expect(errs).To(BeEmpty())
		Expect(customers).To(HaveLen(2))
		Expect(customers[0].Custno).To(Equal("C1"))
		Expect(customers[0].Name).To(Equal("ABC Ltd"))
		Expect(customers[0].Email).To(Equal("ops@example.com"))
		Expect(customers[1].PhoneNumber).To(HaveValue(Equal("0901")))
	})

	It("leaves absent optional contact fields nil", func() {
		customers, errs := ingest.NormalizeCustomers([]ingest.Row{
			{"Custno": "C1", "Name": "ABC", "ContactPerson": "  "},
			{"Custno": "C2", "Name": "DEF", "contact_person": "Lan", "Phone": "0902"},
		})

		Expect(errs).To(BeEmpty())
		Expect(customers[0].ContactPerson).To(BeNil())
		Expect(customers[0].PhoneNumber).To(BeNil())
		Expect(customers[1].ContactPerson).To(HaveValue(Equal("Lan")))
		Expect(customers[1].PhoneNumber).To(HaveValue(Equal("0902")))
	})

	It("reports missing fields and bad addresses by row", func() {
		_, errs := ingest.NormalizeCustomers([]ingest.Row{
			{"Custno": "C1"},
			{"Custno": "C2", "Name": "X", "Email": "not-an-address"},
		})

		Expect(errs).To(ConsistOf(
			ingest.RowError{Row: 2, Reason: "missing required fields: Name"},
			ingest.RowError{Row: 3, Reason: "invalid Email (not-an-address)"},
		))
	})
})
