package mailer_test

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tradedoc/internal/logger"
	"tradedoc/internal/pkg/mailer"
)

var _ = Describe("Mailer", func() {
	It("logs instead of sending when smtp is disabled", func() {
		var buf bytes.Buffer
		m := mailer.NewLogMailer(logger.NewWithWriter(&buf))

		Expect(m.Send(context.Background(), "ops@bank", "c1@example.com", "subject", "<p>x</p>")).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("c1@example.com"))
	})

	It("rejects malformed addresses before dialing", func() {
		m := mailer.NewSMTPMailer(mailer.SMTPConfig{Host: "localhost", Port: 25}, logger.Nop())

		err := m.Send(context.Background(), "not an address", "c1@example.com", "subject", "<p>x</p>")
		Expect(err).To(MatchError(ContainSubstring("invalid sender")))

		err = m.Send(context.Background(), "ops@bank.example", "", "subject", "<p>x</p>")
		Expect(err).To(MatchError(ContainSubstring("invalid recipient")))
	})

	It("fails without blocking when the server is unreachable", func() {
		m := mailer.NewSMTPMailer(mailer.SMTPConfig{Host: "127.0.0.1", Port: 1}, logger.Nop()).
			WithCredentials(func(_ context.Context, from string) (string, string, bool) {
				return from, "secret", true
			})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := m.Send(ctx, "ops@bank.example", "c1@example.com", "subject", "<p>x</p>")
		Expect(err).To(HaveOccurred())
	})
})
