package tasks_test

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tradedoc/internal/logger"
	"tradedoc/internal/models"
	"tradedoc/internal/reminder"
	"tradedoc/internal/tasks"
	"tradedoc/internal/testhelpers"
)

var _ = Describe("TaskProcessor", func() {
	var (
		ctx      context.Context
		st       *testhelpers.MemoryStore
		notifier *testhelpers.RecordingNotifier
		queue    *reminder.TimerQueue
		p        *tasks.TaskProcessor
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = testhelpers.NewMemoryStore()
		notifier = testhelpers.NewRecordingNotifier()
		queue = reminder.NewTimerQueue()
		sched := reminder.NewScheduler(st, notifier, queue, reminder.Options{
			LeadDays:     10,
			DispatchHour: 8,
			Location:     time.UTC,
			DefaultFrom:  "noreply@bank",
		}, logger.Nop())
		p = tasks.NewTaskProcessor(sched, logger.Nop())

		_, err := st.UpsertCustomers(ctx, []models.Customer{testhelpers.NewCustomer("C1", "c1@example.com")})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("HandleSweepRemindersTask", func() {
		It("sends due reminders and defers the rest", func() {
			st.Insert(testhelpers.NewTransaction("T1", "C1", nil))
			st.Insert(testhelpers.NewTransaction("T2", "C1", testhelpers.DayPtr(time.Now(), time.UTC, 60)))

			Expect(p.HandleSweepRemindersTask(ctx, tasks.NewSweepRemindersTask())).To(Succeed())

			Expect(notifier.Sent()).To(HaveLen(1))
			Expect(queue.Pending()).To(HaveLen(1))
		})
	})

	Describe("HandleSendReminderTask", func() {
		It("delivers a claimed reminder", func() {
			tx := st.Insert(testhelpers.NewTransaction("T1", "C1", nil))
			ok, err := st.ClaimReminder(ctx, tx.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			task, err := tasks.NewSendReminderTask(tx.ID, tx.Trref)
			Expect(err).NotTo(HaveOccurred())

			Expect(p.HandleSendReminderTask(ctx, task)).To(Succeed())

			stored, _ := st.FindByID(ctx, tx.ID)
			Expect(stored.IsSendEmail).To(BeTrue())
		})

		It("does not ask asynq to retry a failed delivery", func() {
			notifier.FailFor["c1@example.com"] = errors.New("mailbox full")
			tx := st.Insert(testhelpers.NewTransaction("T1", "C1", nil))

			task, err := tasks.NewSendReminderTask(tx.ID, tx.Trref)
			Expect(err).NotTo(HaveOccurred())

			err = p.HandleSendReminderTask(ctx, task)
			Expect(errors.Is(err, asynq.SkipRetry)).To(BeTrue())
		})

		It("rejects a malformed payload without retry", func() {
			err := p.HandleSendReminderTask(ctx, asynq.NewTask(tasks.TypeTaskSendReminder, []byte("{")))

			Expect(errors.Is(err, asynq.SkipRetry)).To(BeTrue())
		})
	})

	It("registers both handlers", func() {
		mux := asynq.NewServeMux()
		p.Register(mux)

		h, pattern := mux.Handler(tasks.NewSweepRemindersTask())
		Expect(h).NotTo(BeNil())
		Expect(pattern).To(Equal(tasks.TypeTaskSweepReminders))
	})
})
