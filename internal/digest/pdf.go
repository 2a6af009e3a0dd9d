package digest

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

var typographic = strings.NewReplacer(
	"’", "'", "‘", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
	"…", "...",
)

// writePDF lays out the digest as a fixed-layout document at path.
func writePDF(path string, v view) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(v.Title, true)
	pdf.SetAuthor("newsdigest", true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(typographic.Replace(s)) }

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(120, 120, 120)
		title := []rune(v.Title)
		if len(title) > 50 {
			title = title[:50]
		}
		pdf.CellFormat(0, 8, text(string(title)), "", 1, "C", false, 0, "")
		pdf.Ln(4)
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.MultiCell(0, 10, text(v.Title), "", "L", false)
	if v.Subtitle != "" {
		pdf.SetFont("Arial", "", 13)
		pdf.MultiCell(0, 7, text(v.Subtitle), "", "L", false)
	}
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 6, text("Generated on: "+v.GeneratedAt), "", "L", false)
	if v.Introduction != "" {
		pdf.Ln(3)
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, text(v.Introduction), "", "L", false)
	}
	pdf.Ln(4)

	for _, g := range v.Groups {
		if v.Grouped {
			pdf.SetFont("Arial", "B", 16)
			pdf.MultiCell(0, 9, text(g.Name), "", "L", false)
			pdf.Ln(2)
		}
		for _, a := range g.Articles {
			pdf.SetFont("Arial", "B", 13)
			pdf.MultiCell(0, 7, text(a.Title), "", "L", false)

			if meta := strings.Trim(articleMeta(a), "*"); meta != "" {
				pdf.SetFont("Arial", "I", 8)
				pdf.MultiCell(0, 5, text(meta), "", "L", false)
			}

			pdf.SetFont("Arial", "", 11)
			pdf.Ln(1)
			pdf.MultiCell(0, 6, text(a.Summary), "", "L", false)

			if len(a.KeyPoints) > 0 {
				pdf.Ln(1)
				pdf.SetFont("Arial", "B", 11)
				pdf.MultiCell(0, 6, "Key Points:", "", "L", false)
				pdf.SetFont("Arial", "", 11)
				for _, p := range a.KeyPoints {
					pdf.MultiCell(0, 6, text("- "+p), "", "L", false)
				}
			}

			if v.IncludeQuotes && len(a.Quotes) > 0 {
				pdf.Ln(1)
				pdf.SetFont("Arial", "I", 10)
				for _, q := range a.Quotes {
					pdf.MultiCell(0, 6, text(`"`+q+`"`), "", "L", false)
				}
			}

			if v.IncludeLinks && a.URL != "" {
				pdf.Ln(1)
				pdf.SetFont("Arial", "U", 10)
				pdf.SetTextColor(0, 0, 200)
				pdf.WriteLinkString(6, "Read full article", a.URL)
				pdf.SetTextColor(0, 0, 0)
				pdf.Ln(6)
			}

			pdf.Ln(2)
			y := pdf.GetY()
			pdf.Line(15, y, 195, y)
			pdf.Ln(4)
		}
	}

	return pdf.OutputFileAndClose(path)
}
