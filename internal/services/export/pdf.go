package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
)

var (
	colorNight = [3]int{28, 25, 64}
	colorGold  = [3]int{201, 162, 39}
	colorText  = [3]int{44, 44, 60}
	colorMuted = [3]int{120, 118, 140}
)

// renderReading lays a reading out as an A4 document.
func renderReading(reading model.Reading, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetTitle(documentTitle(reading), true)
	pdf.SetAuthor("Mira", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFillColor(colorNight[0], colorNight[1], colorNight[2])
	pdf.Rect(0, 0, pageWidth, 10, "F")

	pdf.SetY(24)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(colorNight[0], colorNight[1], colorNight[2])
	pdf.CellFormat(0, 12, tr(documentTitle(reading)), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 6, "Channelled by Mira on "+generatedAt.UTC().Format("January 2, 2006"), "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetDrawColor(colorGold[0], colorGold[1], colorGold[2])
	pdf.SetLineWidth(0.6)
	pdf.Line(40, pdf.GetY(), pageWidth-40, pdf.GetY())
	pdf.Ln(8)

	pdf.SetFont("Times", "", 12)
	pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
	for _, paragraph := range paragraphs(reading.Content) {
		pdf.MultiCell(0, 6, tr(paragraph), "", "J", false)
		pdf.Ln(3)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func documentTitle(reading model.Reading) string {
	if reading.ReportType == nil {
		return "Your Cosmic Reading"
	}
	words := strings.Split(string(*reading.ReportType), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ") + " Report"
}

func paragraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
