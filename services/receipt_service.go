package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/models"
)

// GenerateReceiptPDF renders a payment receipt for a booking as a PDF. Only
// bookings with at least one successful payment have a receipt.
func GenerateReceiptPDF(db *gorm.DB, bookingID uuid.UUID) ([]byte, error) {
	var booking models.Booking
	if err := db.Preload("Guest").Preload("Room.Accommodation").First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: booking", apperrors.ErrNotFound)
		}
		return nil, err
	}

	var txns []models.PaymentTransaction
	if err := db.Where("booking_id = ? AND status = ?", bookingID, TxnStatusSuccess).
		Order("created_at asc").Find(&txns).Error; err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("%w: no settled payments for this booking", apperrors.ErrConflict)
	}

	htmlData, err := renderReceiptHTML(booking, txns)
	if err != nil {
		return nil, err
	}
	return pdfFromHTML(htmlData)
}

type receiptLine struct {
	Code   string
	Kind   string
	Amount float64
	Date   string
}

func renderReceiptHTML(booking models.Booking, txns []models.PaymentTransaction) (string, error) {
	tmpl, err := template.ParseFiles("templates/receipt.html")
	if err != nil {
		return "", err
	}

	var paid, refunded float64
	lines := make([]receiptLine, 0, len(txns))
	for _, t := range txns {
		switch t.Kind {
		case TxnKindPayment:
			paid += t.Amount
		case TxnKindRefund:
			refunded += t.Amount
		}
		lines = append(lines, receiptLine{
			Code:   t.TransactionCode,
			Kind:   t.Kind,
			Amount: t.Amount,
			Date:   t.CreatedAt.Format("02 Jan 2006 15:04"),
		})
	}

	data := struct {
		GuestName     string
		Accommodation string
		RoomName      string
		CheckIn       string
		CheckOut      string
		TotalAmount   float64
		Paid          float64
		Refunded      float64
		NetReceived   float64
		Status        string
		Lines         []receiptLine
		IssuedAt      string
	}{
		GuestName:     booking.Guest.FullName,
		Accommodation: booking.Room.Accommodation.Name,
		RoomName:      booking.Room.Name,
		CheckIn:       booking.CheckIn.Format("02 Jan 2006"),
		CheckOut:      booking.CheckOut.Format("02 Jan 2006"),
		TotalAmount:   booking.TotalAmount,
		Paid:          paid,
		Refunded:      refunded,
		NetReceived:   paid - refunded,
		Status:        booking.Status,
		Lines:         lines,
		IssuedAt:      time.Now().Format("January 2, 2006"),
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func pdfFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}
