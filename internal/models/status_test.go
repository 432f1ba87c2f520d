package models_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tradedoc/internal/models"
)

var _ = Describe("Status", func() {
	DescribeTable("ParseStatus",
		func(input string, expected models.Status) {
			st, err := models.ParseStatus(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(Equal(expected))
		},
		Entry("code", "awaiting_documents", models.StatusAwaitingDocuments),
		Entry("code with padding and case", "  Documents_Added ", models.StatusDocumentsAdded),
		Entry("awaiting label", "Chưa bổ sung", models.StatusAwaitingDocuments),
		Entry("added label", "Đã bổ sung", models.StatusDocumentsAdded),
	)

	It("rejects unknown values and the overdue view", func() {
		for _, input := range []string{"", "done", "overdue", "Quá hạn"} {
			_, err := models.ParseStatus(input)
			Expect(err).To(MatchError(models.ErrUnknownStatus), input)
		}
	})

	It("parses the overdue view", func() {
		v, err := models.ParseView("Quá hạn")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(models.ViewOverdue))
		Expect(v.Label()).To(Equal("Quá hạn"))
	})

	DescribeTable("CanTransition",
		func(from, to models.Status, allowed bool) {
			Expect(from.CanTransition(to)).To(Equal(allowed))
		},
		Entry("forward", models.StatusAwaitingDocuments, models.StatusDocumentsAdded, true),
		Entry("re-apply awaiting", models.StatusAwaitingDocuments, models.StatusAwaitingDocuments, true),
		Entry("re-apply added", models.StatusDocumentsAdded, models.StatusDocumentsAdded, true),
		Entry("backward", models.StatusDocumentsAdded, models.StatusAwaitingDocuments, false),
		Entry("to unknown", models.StatusAwaitingDocuments, models.Status("overdue"), false),
		Entry("from unknown", models.Status(""), models.StatusDocumentsAdded, false),
	)
})
