package invoice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.InvoiceRenderer = (*PDFRenderer)(nil)

// PDFRenderer writes receipts to cfg.Dir, one file per invoice number. Files
// are treated as a cache: Lookup re-renders anything that went missing.
type PDFRenderer struct {
	dir string
}

func NewPDFRenderer(cfg config.InvoiceConfig) (*PDFRenderer, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create invoice dir: %w", err)
	}
	return &PDFRenderer{dir: cfg.Dir}, nil
}

func (r *PDFRenderer) Path(invoiceNumber string) string {
	p := r.file(invoiceNumber)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func (r *PDFRenderer) file(invoiceNumber string) string {
	return filepath.Join(r.dir, invoiceNumber+".pdf")
}

func (r *PDFRenderer) Render(ctx context.Context, data adapter.InvoiceData) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+data.InvoiceNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "INVOICE")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, "Invoice No: "+data.InvoiceNumber)
	pdf.Ln(7)
	issuedAt := time.Now()
	if data.Payment.CompletedAt != nil {
		issuedAt = *data.Payment.CompletedAt
	}
	pdf.Cell(0, 7, "Date: "+issuedAt.Format("2006-01-02"))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Billed to: "+data.User.Name())
	pdf.Ln(7)
	pdf.Cell(0, 7, "Email: "+data.User.Email)
	pdf.Ln(12)

	// Line items table: one row, a course purchase is always a single item.
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 8, "Description", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(120, 8, data.Course.Title, "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, amount(data.Payment.AmountCents, data.Payment.Currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, amount(data.Payment.AmountCents, data.Payment.Currency), "1", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Payment method: "+string(data.Payment.Method))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Transaction: "+data.Payment.TransactionID)

	out := r.file(data.InvoiceNumber)
	if err := pdf.OutputFileAndClose(out); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return out, nil
}

func amount(cents int64, currency string) string {
	// VND has no minor unit; everything else renders two decimals.
	if currency == "VND" {
		return fmt.Sprintf("%d %s", cents, currency)
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
