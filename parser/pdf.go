package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts per-page text from PDFs, splitting pages into sections
// on detected headings so provenance can point at a section and page.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	sections := make([]Section, 0)

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		sections = append(sections, splitPageIntoSections(text, i)...)
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no text extracted from PDF")
	}

	return &ParseResult{Sections: sections}, nil
}

// splitPageIntoSections breaks page text into logical sections.
func splitPageIntoSections(text string, pageNum int) []Section {
	lines := strings.Split(text, "\n")
	var sections []Section
	var currentContent strings.Builder
	var currentHeading string
	currentLevel := 0

	flush := func() {
		if currentContent.Len() == 0 {
			return
		}
		sections = append(sections, Section{
			Heading:    currentHeading,
			Content:    strings.TrimSpace(currentContent.String()),
			Level:      currentLevel,
			PageNumber: pageNum,
		})
		currentContent.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if currentContent.Len() > 0 {
				currentContent.WriteString("\n")
			}
			continue
		}

		// Detect headings: all-caps lines, numbered sections, short prefixed lines
		if isLikelyHeading(trimmed) {
			flush()
			currentHeading = trimmed
			currentLevel = detectHeadingLevel(trimmed)
		} else {
			if currentContent.Len() > 0 {
				currentContent.WriteString("\n")
			}
			currentContent.WriteString(trimmed)
		}
	}
	flush()

	// If no sections were created, return the whole page as one section
	if len(sections) == 0 && strings.TrimSpace(text) != "" {
		sections = append(sections, Section{
			Content:    text,
			PageNumber: pageNum,
		})
	}

	return sections
}

func isLikelyHeading(line string) bool {
	// All caps and short
	if len(line) < 100 && line == strings.ToUpper(line) && len(line) > 2 {
		return true
	}
	// Numbered section like "1.", "1.1", "1.1.1", "3.9.1", "7.3.1.2"
	if len(line) < 120 {
		if len(line) > 0 && line[0] >= '0' && line[0] <= '9' && strings.Contains(line[:min(10, len(line))], ".") {
			return true
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "section ") || strings.HasPrefix(lower, "article ") ||
			strings.HasPrefix(lower, "chapter ") || strings.HasPrefix(lower, "part ") ||
			strings.HasPrefix(lower, "appendix ") || strings.HasPrefix(lower, "annex ") ||
			strings.HasPrefix(lower, "schedule ") || strings.HasPrefix(lower, "exhibit ") {
			return true
		}
		// "Table N" / "Figure N" captions, only when followed by a digit to
		// avoid matching mid-paragraph text like "table below shows..."
		if strings.HasPrefix(lower, "table ") && len(lower) > 6 && lower[6] >= '0' && lower[6] <= '9' {
			return true
		}
		if strings.HasPrefix(lower, "figure ") && len(lower) > 7 && lower[7] >= '0' && lower[7] <= '9' {
			return true
		}
	}
	return false
}

func detectHeadingLevel(heading string) int {
	// Count dots in numbering to determine depth
	parts := strings.SplitN(heading, " ", 2)
	if len(parts) > 0 {
		dots := strings.Count(parts[0], ".")
		if dots > 0 {
			return dots
		}
	}
	// All-caps = top level
	if heading == strings.ToUpper(heading) {
		return 1
	}
	return 2
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
