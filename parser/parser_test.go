package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, format := range []string{"pdf", "txt", "md", "xlsx"} {
		if _, err := r.Get(format); err != nil {
			t.Errorf("expected parser for %q: %v", format, err)
		}
	}

	if _, err := r.Get("pptx"); err == nil {
		t.Error("expected error for unregistered format")
	}
}

func TestTextParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	content := "RTO is guaranteed at 1 hour.\n\nBackups run nightly."
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(result.Sections))
	}
	sec := result.Sections[0]
	if sec.Heading != "notes.txt" {
		t.Errorf("heading = %q", sec.Heading)
	}
	if sec.Content != content {
		t.Errorf("content altered: %q", sec.Content)
	}
}

func TestTextParserEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Sections) != 0 {
		t.Errorf("expected no sections for empty file, got %d", len(result.Sections))
	}
}

func TestSplitPageIntoSections(t *testing.T) {
	text := `3. SERVICE LEVELS
RTO is guaranteed at 1 hour.
RPO is 15 minutes.
3.1 Availability
Uptime of 99.95% is guaranteed monthly.`

	sections := splitPageIntoSections(text, 4)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(sections), sections)
	}
	if sections[0].Heading != "3. SERVICE LEVELS" {
		t.Errorf("heading = %q", sections[0].Heading)
	}
	if sections[0].PageNumber != 4 {
		t.Errorf("page = %d, want 4", sections[0].PageNumber)
	}
	if sections[1].Heading != "3.1 Availability" {
		t.Errorf("second heading = %q", sections[1].Heading)
	}
	if sections[1].Content != "Uptime of 99.95% is guaranteed monthly." {
		t.Errorf("second content = %q", sections[1].Content)
	}
}

func TestSplitPageNoHeadings(t *testing.T) {
	sections := splitPageIntoSections("just a plain paragraph of body text here", 2)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Heading != "" || sections[0].PageNumber != 2 {
		t.Errorf("unexpected section: %+v", sections[0])
	}
}

func TestIsLikelyHeading(t *testing.T) {
	headings := []string{
		"3. SERVICE LEVELS",
		"3.1 Availability",
		"7.3.1.2 Recovery objectives",
		"Section 4: Security",
		"Appendix B",
		"Table 3 Recovery objectives",
	}
	for _, h := range headings {
		if !isLikelyHeading(h) {
			t.Errorf("isLikelyHeading(%q) = false, want true", h)
		}
	}

	nonHeadings := []string{
		"RTO is guaranteed at 1 hour.",
		"the table below shows retention windows",
		"a",
	}
	for _, h := range nonHeadings {
		if isLikelyHeading(h) {
			t.Errorf("isLikelyHeading(%q) = true, want false", h)
		}
	}
}

func TestDetectHeadingLevel(t *testing.T) {
	tests := []struct {
		heading string
		want    int
	}{
		{"3.1 Availability", 1},
		{"7.3.1.2 Recovery", 3},
		{"SERVICE LEVELS", 1},
		{"Availability", 2},
	}
	for _, tt := range tests {
		if got := detectHeadingLevel(tt.heading); got != tt.want {
			t.Errorf("detectHeadingLevel(%q) = %d, want %d", tt.heading, got, tt.want)
		}
	}
}
