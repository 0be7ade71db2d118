package utils

import (
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/minhvu2810/homestay_booking/models"
)

const transactionCodeLength = 12
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateTransactionCode returns a code not yet used by any transaction.
// The code doubles as the gateway's vnp_TxnRef, so it must be unique for
// the merchant account, not just per booking.
func GenerateTransactionCode(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		b := make([]byte, transactionCodeLength)
		for i := range b {
			b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		code := string(b)

		var txn models.PaymentTransaction
		err := tx.Where("transaction_code = ?", code).First(&txn).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return code, nil
			}
			return "", err
		}
	}
}
