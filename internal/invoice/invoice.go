// Package invoice renders a PDF invoice for an order. The email channel is its
// only consumer and sees it through the Generator interface.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"ordernotify/internal/config"
	"ordernotify/internal/domain"
)

const ContentTypePDF = "application/pdf"

// Invoice готовый документ, который прикладывается к письму
type Invoice struct {
	Name        string
	ContentType string
	Data        []byte
}

// Generator строит счёт по заказу
type Generator interface {
	Generate(ctx context.Context, o *domain.Order) (*Invoice, error)
}

// FileName имя вложения, детерминированное по orderId
func FileName(orderID string) string {
	return "invoice_" + orderID + ".pdf"
}

// PDFGenerator рисует счёт формата A4
type PDFGenerator struct {
	shop config.Shop
}

func NewPDFGenerator(shop config.Shop) *PDFGenerator {
	return &PDFGenerator{shop: shop}
}

var colWidths = []float64{80, 20, 30, 30}

func (g *PDFGenerator) Generate(ctx context.Context, o *domain.Order) (*Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-20)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, "Thank you for your order! This invoice is generated automatically.", "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// header
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(90, 10, "INVOICE", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Order ID: "+o.OrderID, "", 1, "R", false, 0, "")
	pdf.CellFormat(90, 5, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Date: "+o.FormattedTime(), "", 1, "R", false, 0, "")
	pdf.Ln(10)

	// shop
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, tr(g.shop.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr(g.shop.Email), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(g.shop.Website), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// bill to
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, "Bill To:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr(o.Customer.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(o.Customer.Email), "", 1, "L", false, 0, "")
	pdf.MultiCell(0, 5, tr(o.Address), "", "L", false)
	pdf.Ln(8)

	// items
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(211, 211, 211)
	for i, h := range []string{"Item", "Qty", "Price", "Subtotal"} {
		pdf.CellFormat(colWidths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, it := range o.Items {
		pdf.CellFormat(colWidths[0], 7, tr(it.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[1], 7, strconv.FormatInt(it.Qty, 10), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colWidths[2], 7, domain.Money(it.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[3], 7, domain.Money(it.Subtotal()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "Total: "+domain.Money(o.Total), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", o.OrderID, err)
	}
	return &Invoice{
		Name:        FileName(o.OrderID),
		ContentType: ContentTypePDF,
		Data:        buf.Bytes(),
	}, nil
}
