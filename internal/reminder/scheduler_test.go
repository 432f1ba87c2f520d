package reminder_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tradedoc/internal/logger"
	"tradedoc/internal/models"
	"tradedoc/internal/reminder"
	"tradedoc/internal/testhelpers"
)

var _ = Describe("Scheduler", func() {
	var (
		ctx      context.Context
		hcm      *time.Location
		now      time.Time
		st       *testhelpers.MemoryStore
		notifier *testhelpers.RecordingNotifier
		queue    *reminder.TimerQueue
		sched    *reminder.Scheduler
	)

	BeforeEach(func() {
		var err error
		hcm, err = time.LoadLocation("Asia/Ho_Chi_Minh")
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		now = time.Date(2024, 3, 10, 9, 0, 0, 0, hcm)
		st = testhelpers.NewMemoryStore()
		notifier = testhelpers.NewRecordingNotifier()
		queue = reminder.NewTimerQueue()
		sched = reminder.NewScheduler(st, notifier, queue, reminder.Options{
			LeadDays:     10,
			DispatchHour: 8,
			Location:     hcm,
			DefaultFrom:  "noreply@bank",
		}, logger.Nop()).WithClock(func() time.Time { return now })

		_, err = st.UpsertCustomers(ctx, []models.Customer{
			testhelpers.NewCustomer("C1", "c1@example.com"),
			testhelpers.NewCustomer("C2", "c2@example.com"),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("TargetInstant", func() {
		It("is the lead day at the dispatch hour", func() {
			decl := testhelpers.DayPtr(now, hcm, 30)

			target := sched.TargetInstant(decl, now)

			Expect(target).To(BeTemporally("==", time.Date(2024, 3, 30, 8, 0, 0, 0, hcm)))
		})

		It("is already due when the deadline is exactly the lead time away", func() {
			decl := testhelpers.DayPtr(now, hcm, 10)

			Expect(sched.TargetInstant(decl, now)).To(BeTemporally("<=", now))
		})

		It("is now without a deadline", func() {
			Expect(sched.TargetInstant(nil, now)).To(Equal(now))
		})
	})

	Describe("Sweep", func() {
		It("sends due reminders once and marks them sent", func() {
			tx := st.Insert(testhelpers.NewTransaction("T1", "C1", testhelpers.DayPtr(now, hcm, 10)))

			res, err := sched.Sweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Dispatched).To(Equal(1))
			Expect(notifier.Sent()).To(HaveLen(1))

			msg := notifier.Sent()[0]
			Expect(msg.From).To(Equal("noreply@bank"))
			Expect(msg.To).To(Equal("c1@example.com"))
			Expect(msg.Subject).To(Equal("Nhắc nhở bổ sung chứng từ giao dịch T1"))
			Expect(msg.HTML).To(ContainSubstring("<td>T1</td>"))
			Expect(msg.HTML).To(ContainSubstring("100.00"))

			stored, _ := st.FindByID(ctx, tx.ID)
			Expect(stored.IsSendingEmail).To(BeTrue())
			Expect(stored.IsSendEmail).To(BeTrue())

			res, err = sched.Sweep(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Candidates).To(BeZero())
			Expect(notifier.Sent()).To(HaveLen(1))
		})

		It("sends immediately when there is no deadline", func() {
			st.Insert(testhelpers.NewTransaction("T1", "C1", nil))

			res, err := sched.Sweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Dispatched).To(Equal(1))
		})

		It("defers reminders whose target is in the future", func() {
			tx := st.Insert(testhelpers.NewTransaction("T1", "C1", testhelpers.DayPtr(now, hcm, 30)))

			res, err := sched.Sweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Deferred).To(Equal(1))
			Expect(notifier.Sent()).To(BeEmpty())
			Expect(queue.Pending()).To(ConsistOf(reminder.Job{
				TransactionID: tx.ID,
				Trref:         "T1",
				At:            time.Date(2024, 3, 30, 8, 0, 0, 0, hcm),
			}))

			stored, _ := st.FindByID(ctx, tx.ID)
			Expect(stored.IsSendingEmail).To(BeTrue())
			Expect(stored.IsSendEmail).To(BeFalse())
		})

		It("does not claim transactions of customers without an email", func() {
			tx := st.Insert(testhelpers.NewTransaction("T1", "C9", nil))

			res, err := sched.Sweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Skipped).To(Equal(1))
			stored, _ := st.FindByID(ctx, tx.ID)
			Expect(stored.ReminderPending()).To(BeTrue())
		})

		It("absorbs a failed send, keeps the claim and never retries", func() {
			notifier.FailFor["c1@example.com"] = errors.New("mailbox unavailable")
			failed := st.Insert(testhelpers.NewTransaction("T1", "C1", nil))
			st.Insert(testhelpers.NewTransaction("T2", "C2", nil))

			res, err := sched.Sweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failed).To(Equal(1))
			Expect(res.Dispatched).To(Equal(1))

			stored, _ := st.FindByID(ctx, failed.ID)
			Expect(stored.IsSendingEmail).To(BeTrue())
			Expect(stored.IsSendEmail).To(BeFalse())

			delete(notifier.FailFor, "c1@example.com")
			res, err = sched.Sweep(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Candidates).To(BeZero())
			Expect(notifier.Sent()).To(HaveLen(1))
		})

		It("uses the stored sender mailbox", func() {
			Expect(st.CreateSender(ctx, &models.SenderConfig{Email: "ops@bank", Password: "secret"})).To(Succeed())
			st.Insert(testhelpers.NewTransaction("T1", "C1", nil))

			_, err := sched.Sweep(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(notifier.Sent()[0].From).To(Equal("ops@bank"))
		})

		It("dispatches at most once per transaction under concurrent sweeps", func() {
			for _, ref := range []string{"T1", "T2", "T3", "T4", "T5"} {
				st.Insert(testhelpers.NewTransaction(ref, "C1", nil))
			}

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := sched.Sweep(ctx)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			subjects := map[string]int{}
			for _, msg := range notifier.Sent() {
				subjects[msg.Subject]++
			}
			Expect(subjects).To(HaveLen(5))
			for subject, n := range subjects {
				Expect(n).To(Equal(1), subject)
			}
		})
	})

	Describe("Deliver", func() {
		It("does nothing for an already sent reminder", func() {
			tx := st.Insert(testhelpers.NewTransaction("T1", "C1", nil))
			Expect(st.MarkReminderSent(ctx, tx.ID)).To(Succeed())

			Expect(sched.Deliver(ctx, tx.ID)).To(Succeed())
			Expect(notifier.Sent()).To(BeEmpty())
		})

		It("reports a missing transaction as a delivery failure", func() {
			Expect(sched.Deliver(ctx, 404)).To(MatchError(reminder.ErrDelivery))
		})
	})

	Describe("Recover", func() {
		It("re-registers only claims whose target is still ahead", func() {
			future := st.Insert(testhelpers.NewTransaction("T1", "C1", testhelpers.DayPtr(now, hcm, 30)))
			past := st.Insert(testhelpers.NewTransaction("T2", "C1", testhelpers.DayPtr(now, hcm, 2)))
			for _, id := range []uint{future.ID, past.ID} {
				ok, err := st.ClaimReminder(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
			}

			n, err := sched.Recover(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(queue.Pending()).To(HaveLen(1))
			Expect(queue.Pending()[0].TransactionID).To(Equal(future.ID))
		})
	})
})
