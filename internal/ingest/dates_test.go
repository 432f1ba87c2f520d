package ingest_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tradedoc/internal/ingest"
)

var _ = Describe("DecodeDate", func() {
	want := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	DescribeTable("resolves every encoding of the same day to the same value",
		func(cell any) {
			got, err := ingest.DecodeDate(cell)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("native date at midnight UTC", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		Entry("native date late in the evening", time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC)),
		Entry("native date in UTC+7", time.Date(2024, 1, 15, 0, 30, 0, 0, time.FixedZone("ICT", 7*3600))),
		Entry("serial float", float64(45306)),
		Entry("serial with a time fraction", 45306.75),
		Entry("serial int", 45306),
		Entry("serial json number", json.Number("45306")),
		Entry("serial string", "45306"),
		Entry("dd/MM/yyyy", "15/01/2024"),
		Entry("d/M/yyyy", "15/1/2024"),
		Entry("padded string", "  15/01/2024 "),
		Entry("ISO date", "2024-01-15"),
	)

	DescribeTable("rejects values no encoding accepts",
		func(cell any) {
			_, err := ingest.DecodeDate(cell)
			Expect(err).To(HaveOccurred())
		},
		Entry("text", "next week"),
		Entry("US order past day 12", "01/15/2024"),
		Entry("impossible day", "31/02/2024"),
		Entry("zero serial", 0),
		Entry("negative serial", -5.0),
		Entry("huge serial", float64(99999999)),
		Entry("zero time", time.Time{}),
		Entry("bool", true),
	)
})
