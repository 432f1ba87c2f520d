package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tradedoc/internal/models"
	"tradedoc/internal/store"
	"tradedoc/internal/testhelpers"
)

var _ = Describe("Filter", func() {
	today := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := models.AddDays(today, -1)

	It("treats a missing deadline as not yet due", func() {
		tx := testhelpers.NewTransaction("T1", "C1", nil)

		Expect(store.Filter{DeclarationFrom: &today}.Match(tx)).To(BeTrue())
		Expect(store.Filter{DeclarationBefore: &today}.Match(tx)).To(BeFalse())
	})

	It("puts the deadline day itself on the on-time side", func() {
		tx := testhelpers.NewTransaction("T1", "C1", &today)

		Expect(store.Filter{DeclarationFrom: &today}.Match(tx)).To(BeTrue())
		Expect(store.Filter{DeclarationBefore: &today}.Match(tx)).To(BeFalse())

		late := testhelpers.NewTransaction("T2", "C1", &yesterday)
		Expect(store.Filter{DeclarationBefore: &today}.Match(late)).To(BeTrue())
	})

	It("combines flags and customer numbers", func() {
		tx := testhelpers.NewTransaction("T1", "C1", nil)
		tx.Censored = true
		yes, no := true, false

		Expect(store.Filter{Censored: &yes, PostInspection: &no, Custnos: []string{"C1"}}.Match(tx)).To(BeTrue())
		Expect(store.Filter{Custnos: []string{"C2"}}.Match(tx)).To(BeFalse())
		Expect(store.Filter{SendEmail: &yes}.Match(tx)).To(BeFalse())
	})
})

var _ = Describe("Pagination", func() {
	It("fills defaults and clamps the limit", func() {
		Expect(store.Pagination{}.Normalize()).To(Equal(store.Pagination{Page: 1, Limit: 10}))
		Expect(store.Pagination{Page: 3, Limit: 10000}.Normalize().Limit).To(Equal(store.MaxLimit))
	})

	It("computes the last page", func() {
		p := store.Pagination{Page: 1, Limit: 10}
		Expect(p.LastPage(0)).To(Equal(1))
		Expect(p.LastPage(10)).To(Equal(1))
		Expect(p.LastPage(11)).To(Equal(2))
		Expect(p.Offset()).To(Equal(0))
	})
})
