package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"tradedoc/internal/config"
	"tradedoc/internal/logger"
	"tradedoc/internal/models"
	"tradedoc/internal/reminder"
	"tradedoc/internal/report"
	"tradedoc/internal/routes"
	"tradedoc/internal/testhelpers"
)

const testSecret = "test-secret"

type apiClient struct {
	router *gin.Engine
	token  string
}

func (a apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp := httptest.NewRecorder()
	a.router.ServeHTTP(resp, req)
	return resp
}

func (a apiClient) as(name, role string) apiClient {
	a.token = testhelpers.SignToken(testSecret, name, role)
	return a
}

func newTestRouter(st *testhelpers.MemoryStore, notifier *testhelpers.RecordingNotifier) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg, err := config.LoadConfig()
	Expect(err).NotTo(HaveOccurred())
	cfg.JWTSecret = testSecret
	cfg.Location = time.UTC
	cfg.SMTPFrom = "noreply@bank"

	svc := routes.NewServices(st, cfg, notifier, reminder.NewTimerQueue(), logger.Nop())
	return routes.SetupRouter(cfg, svc)
}

var _ = Describe("TransactionController", func() {
	var (
		ctx     context.Context
		st      *testhelpers.MemoryStore
		api     apiClient
		officer apiClient
		censor  apiClient
		auditor apiClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = testhelpers.NewMemoryStore()
		api = apiClient{router: newTestRouter(st, testhelpers.NewRecordingNotifier())}
		officer = api.as("Officer A", "officer")
		censor = api.as("Censor B", "censor")
		auditor = api.as("Auditor C", "inspector")
	})

	It("requires a bearer token", func() {
		resp := api.do(http.MethodGet, "/api/v1/transactions", nil)

		Expect(resp.Code).To(Equal(http.StatusUnauthorized))
	})

	It("serves the health check without a token", func() {
		resp := api.do(http.MethodGet, "/health", nil)

		Expect(resp.Code).To(Equal(http.StatusOK))
	})

	Describe("POST /api/v1/transactions/import", func() {
		rows := []map[string]any{
			{"Trref": "T1", "Custno": "C1", "Custnm": "ABC", "Currency": "USD", "Amount": "1,000.50", "bencust": "X", "remark": "HD 123, TT truoc 240115"},
			{"Trref": "T1", "Custno": "C1", "Custnm": "ABC", "Currency": "USD", "Amount": "5", "bencust": "X"},
			{"Trref": "T2", "Custno": "C2", "Custnm": "DEF", "Currency": "VND", "Amount": 2500000, "bencust": "Y", "Tradate": 45306},
		}

		It("imports JSON rows and reports the count", func() {
			resp := officer.do(http.MethodPost, "/api/v1/transactions/import", rows)

			Expect(resp.Code).To(Equal(http.StatusCreated))
			var body struct {
				Count   int `json:"count"`
				Skipped []struct {
					Row    int    `json:"row"`
					Reason string `json:"reason"`
				} `json:"skipped"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Count).To(Equal(2))
			Expect(body.Skipped).To(HaveLen(1))

			tx, err := st.FindByKey(ctx, "T1")
			Expect(err).NotTo(HaveOccurred())
			Expect(*tx.ContractNumber).To(Equal("123"))
			Expect(tx.ExpectedDeclarationDate.Format("2006-01-02")).To(Equal("2024-02-14"))

			tx, err = st.FindByKey(ctx, "T2")
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.Tradate.Format("2006-01-02")).To(Equal("2024-01-15"))
		})

		It("is idempotent", func() {
			Expect(officer.do(http.MethodPost, "/api/v1/transactions/import", rows).Code).To(Equal(http.StatusCreated))

			resp := officer.do(http.MethodPost, "/api/v1/transactions/import", map[string]any{"rows": rows})

			Expect(resp.Code).To(Equal(http.StatusCreated))
			Expect(resp.Body.String()).To(ContainSubstring(`"count":0`))
		})

		It("rejects the whole batch with row errors", func() {
			bad := append([]map[string]any{}, rows...)
			bad = append(bad, map[string]any{"Trref": "T3", "Custno": "C3"})

			resp := officer.do(http.MethodPost, "/api/v1/transactions/import", bad)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
			var body struct {
				Errors []struct {
					Row    int    `json:"row"`
					Reason string `json:"reason"`
				} `json:"errors"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Errors).To(HaveLen(1))
			Expect(body.Errors[0].Row).To(Equal(5))

			_, err := st.FindByKey(ctx, "T1")
			Expect(err).To(HaveOccurred())
		})

		It("accepts an xlsx upload", func() {
			book := excelize.NewFile()
			sheet := book.GetSheetName(0)
			Expect(book.SetSheetRow(sheet, "A1", &[]any{"Trref", "Custno", "Custnm", "Currency", "Amount", "bencust", "remark"})).To(Succeed())
			Expect(book.SetSheetRow(sheet, "A2", &[]any{"X1", "C1", "ABC", "USD", 10, "B", "HD 77"})).To(Succeed())
			xlsx, err := book.WriteToBuffer()
			Expect(err).NotTo(HaveOccurred())

			var body bytes.Buffer
			form := multipart.NewWriter(&body)
			part, err := form.CreateFormFile("file", "batch.xlsx")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(xlsx.Bytes())
			Expect(err).NotTo(HaveOccurred())
			Expect(form.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/import", &body)
			req.Header.Set("Content-Type", form.FormDataContentType())
			req.Header.Set("Authorization", "Bearer "+officer.token)
			resp := httptest.NewRecorder()
			officer.router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusCreated))
			tx, err := st.FindByKey(ctx, "X1")
			Expect(err).NotTo(HaveOccurred())
			Expect(*tx.ContractNumber).To(Equal("77"))
		})
	})

	Describe("listing", func() {
		BeforeEach(func() {
			now := time.Now()
			st.Insert(testhelpers.NewTransaction("T1", "C1", testhelpers.DayPtr(now, time.UTC, -3)))
			st.Insert(testhelpers.NewTransaction("T2", "C2", testhelpers.DayPtr(now, time.UTC, 3)))
		})

		It("lists a status view by its label", func() {
			resp := officer.do(http.MethodGet, "/api/v1/transactions?status=Qu%C3%A1%20h%E1%BA%A1n", nil)

			Expect(resp.Code).To(Equal(http.StatusOK))
			var page report.Page
			Expect(json.Unmarshal(resp.Body.Bytes(), &page)).To(Succeed())
			Expect(page.Total).To(BeEquivalentTo(1))
			Expect(page.Data[0].Trref).To(Equal("T1"))
			Expect(page.Data[0].Overdue).To(BeTrue())
			Expect(page.LastPage).To(Equal(1))
		})

		It("rejects an unknown status", func() {
			resp := officer.do(http.MethodGet, "/api/v1/transactions?status=done", nil)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns one transaction", func() {
			tx, _ := st.FindByKey(ctx, "T2")

			resp := officer.do(http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d", tx.ID), nil)

			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"trref":"T2"`))
			Expect(officer.do(http.MethodGet, "/api/v1/transactions/9999", nil).Code).To(Equal(http.StatusNotFound))
			Expect(officer.do(http.MethodGet, "/api/v1/transactions/abc", nil).Code).To(Equal(http.StatusBadRequest))
		})

		It("exports the overdue report", func() {
			resp := officer.do(http.MethodGet, "/api/v1/transactions/report/overdue", nil)

			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Header().Get("Content-Type")).To(Equal(report.ContentType))
			Expect(resp.Header().Get("Content-Disposition")).To(HavePrefix("attachment; filename=report-overdue-"))

			book, err := excelize.OpenReader(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			rows, err := book.GetRows(report.SheetName)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
		})

		It("refuses to export documents added", func() {
			resp := officer.do(http.MethodGet, "/api/v1/transactions/report/documents_added", nil)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
			Expect(resp.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
		})
	})

	Describe("workflow updates", func() {
		var path string

		BeforeEach(func() {
			tx := st.Insert(testhelpers.NewTransaction("T1", "C1", nil))
			path = fmt.Sprintf("/api/v1/transactions/%d", tx.ID)
		})

		It("lets the officer mark documents added", func() {
			resp := officer.do(http.MethodPut, path, map[string]any{"status": "Đã bổ sung", "note": "ok"})

			Expect(resp.Code).To(Equal(http.StatusOK))
			var tx models.Transaction
			Expect(json.Unmarshal(resp.Body.Bytes(), &tx)).To(Succeed())
			Expect(tx.Status).To(Equal(models.StatusDocumentsAdded))
			Expect(*tx.UpdatedBy).To(Equal("Officer A"))
		})

		It("rejects an unknown status", func() {
			resp := officer.do(http.MethodPut, path, map[string]any{"status": "Quá hạn"})

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports a backward move as a conflict", func() {
			Expect(officer.do(http.MethodPut, path, map[string]any{"status": "documents_added"}).Code).To(Equal(http.StatusOK))

			resp := officer.do(http.MethodPut, path, map[string]any{"status": "awaiting_documents"})

			Expect(resp.Code).To(Equal(http.StatusConflict))
		})

		It("forbids censorship by the officer and leaves the record unchanged", func() {
			resp := officer.do(http.MethodPut, path+"/censorship", map[string]any{"censored": true})

			Expect(resp.Code).To(Equal(http.StatusForbidden))
			tx, _ := st.FindByKey(ctx, "T1")
			Expect(tx.Censored).To(BeFalse())
		})

		It("runs the censorship and post-inspection stages", func() {
			Expect(officer.do(http.MethodPut, path, map[string]any{"status": "documents_added"}).Code).To(Equal(http.StatusOK))
			Expect(censor.do(http.MethodPut, path+"/censorship", map[string]any{"censored": true, "note_censored": "fine"}).Code).To(Equal(http.StatusOK))

			queue := officer.do(http.MethodGet, "/api/v1/transactions/censored", nil)
			Expect(queue.Body.String()).To(ContainSubstring(`"trref":"T1"`))

			resp := auditor.do(http.MethodPut, path+"/post-inspection", map[string]any{"post_inspection": true})
			Expect(resp.Code).To(Equal(http.StatusOK))

			tx, _ := st.FindByKey(ctx, "T1")
			Expect(tx.Censored).To(BeTrue())
			Expect(tx.PostInspection).To(BeTrue())
			Expect(*tx.NoteCensored).To(Equal("fine"))

			export := officer.do(http.MethodGet, "/api/v1/transactions/report/post-inspection?flag=true", nil)
			Expect(export.Code).To(Equal(http.StatusOK))
			Expect(export.Header().Get("Content-Disposition")).To(ContainSubstring("post-inspection-true"))
		})

		It("checks the role before validating the body", func() {
			resp := censor.do(http.MethodPut, path, map[string]any{"status": "not-a-status"})
			Expect(resp.Code).To(Equal(http.StatusForbidden))

			resp = officer.do(http.MethodPut, path+"/censorship", map[string]any{"status": "Quá hạn"})
			Expect(resp.Code).To(Equal(http.StatusForbidden))

			resp = officer.do(http.MethodPut, path+"/post-inspection", map[string]any{"status": "bogus"})
			Expect(resp.Code).To(Equal(http.StatusForbidden))

			resp = auditor.do(http.MethodPut, path+"/post-inspection", map[string]any{"status": "bogus"})
			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown id", func() {
			resp := censor.do(http.MethodPut, "/api/v1/transactions/9999/censorship", map[string]any{"censored": true})

			Expect(resp.Code).To(Equal(http.StatusNotFound))
		})

		It("rejects a malformed body", func() {
			req := httptest.NewRequest(http.MethodPut, path, strings.NewReader("{"))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+officer.token)
			resp := httptest.NewRecorder()
			officer.router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
