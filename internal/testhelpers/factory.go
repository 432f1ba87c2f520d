package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	g "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradedoc/internal/models"
)

func CleanupDB(db *gorm.DB) {
	for _, model := range []any{&models.Transaction{}, &models.Customer{}, &models.SenderConfig{}} {
		err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error
		g.Expect(err).NotTo(g.HaveOccurred(), "Failed to clean table")
	}
}

// NewTransaction builds an awaiting-documents transaction with sane defaults.
func NewTransaction(trref, custno string, declaration *time.Time) models.Transaction {
	tx := models.Transaction{
		Trref:    trref,
		Custno:   custno,
		Custnm:   "Customer " + custno,
		Currency: "USD",
		Amount:   decimal.RequireFromString("100.00"),
		Bencust:  "Beneficiary",
		Remark:   "HD " + trref,
		Document: "Tờ khai hải quan",
		Status:   models.StatusAwaitingDocuments,
	}
	tx.SetDeclarationDate(declaration)
	return tx
}

func NewCustomer(custno, email string) models.Customer {
	return models.Customer{
		Custno: custno,
		Name:   "Customer " + custno,
		Email:  email,
	}
}

// DayPtr returns an anchored day offset from now by n days in loc.
func DayPtr(now time.Time, loc *time.Location, n int) *time.Time {
	d := models.AddDays(models.Today(now, loc), n)
	return &d
}

// SignToken issues an HS256 token the API accepts.
func SignToken(secret, name, role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name": name,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	g.Expect(err).NotTo(g.HaveOccurred())
	return signed
}
