// Package reports renders printable documents
package reports

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/phpdave11/gofpdf"
)

var colW = []float64{12, 30, 34, 34, 34, 38}

// SchedulePDF writes the amortization schedule of a plan as an A4 PDF
func SchedulePDF(w io.Writer, e *models.EMI, rows []models.ScheduleEntry, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle("EMI schedule "+e.Code, false)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "EMI Repayment Schedule")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	for _, line := range []string{
		"Plan: " + e.Code,
		fmt.Sprintf("Principal: %s at %.2f%% p.a. over %d months", models.FormatAmount(e.PrincipalAmount), e.InterestRate, e.TenureMonths),
		"Monthly installment: " + models.FormatAmount(e.InstallmentAmount),
		"Start date: " + e.StartDate.Format("2006-01-02"),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	if e.ProductName != "" {
		pdf.Cell(0, 6, "Product: "+e.ProductName)
		pdf.Ln(5)
	}
	pdf.Ln(5)

	header(pdf)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(30, 30, 30)

	var totalPayment, totalInterest float64
	for _, row := range rows {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header(pdf)
			pdf.SetFont("Helvetica", "", 9)
		}
		pdf.CellFormat(colW[0], 7, strconv.Itoa(row.Installment), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 7, row.DueDate.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[2], 7, amount(row.Payment), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[3], 7, amount(row.Interest), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], 7, amount(row.Principal), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[5], 7, amount(row.Balance), "1", 1, "R", false, 0, "")
		totalPayment += row.Payment
		totalInterest += row.Interest
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(colW[0]+colW[1], 8, "TOTAL", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[2], 8, amount(models.RoundCents(totalPayment)), "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW[3], 8, amount(models.RoundCents(totalInterest)), "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW[4]+colW[5], 8, "", "1", 1, "R", true, 0, "")

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Generated "+generatedAt.Format(time.RFC3339), "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

func header(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	for i, title := range []string{"#", "DUE DATE", "PAYMENT", "INTEREST", "PRINCIPAL", "BALANCE"} {
		ln := 0
		if i == len(colW)-1 {
			ln = 1
		}
		pdf.CellFormat(colW[i], 8, title, "1", ln, "C", true, 0, "")
	}
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
