package reminder

import (
	"bytes"
	"html/template"
	"time"

	"tradedoc/internal/models"
)

var reminderTemplate = template.Must(template.New("reminder").Funcs(template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("02/01/2006")
	},
	"text": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).Parse(`<p>Kính gửi Quý khách hàng {{.Tx.Custnm}},</p>
<p>Ngân hàng xin thông báo giao dịch dưới đây chưa được bổ sung chứng từ. Hạn bổ sung: <b>{{date .Tx.ExpectedDeclarationDate}}</b>.</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Số giao dịch</th><th>Ngày giao dịch</th><th>Loại tiền</th><th>Số tiền</th><th>Người thụ hưởng</th><th>Số hợp đồng</th><th>Nội dung</th><th>Hạn bổ sung</th></tr>
<tr><td>{{.Tx.Trref}}</td><td>{{date .Tx.Tradate}}</td><td>{{.Tx.Currency}}</td><td>{{.Amount}}</td><td>{{.Tx.Bencust}}</td><td>{{text .Tx.ContractNumber}}</td><td>{{.Tx.Remark}}</td><td>{{date .Tx.ExpectedDeclarationDate}}</td></tr>
</table>
<p>Ngày gửi: {{.Today}}</p>`))

// Render builds the HTML body of a reminder for one transaction.
func Render(tx models.Transaction, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	var buf bytes.Buffer
	err := reminderTemplate.Execute(&buf, struct {
		Tx     models.Transaction
		Amount string
		Today  string
	}{
		Tx:     tx,
		Amount: tx.Amount.StringFixed(2),
		Today:  time.Now().In(loc).Format("02/01/2006"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
