// Package parser extracts structured text from source documents.
package parser

import "context"

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // Ordered sections extracted from the document
}

// Section represents a logical section of a parsed document.
type Section struct {
	Heading    string
	Content    string
	Level      int // Heading level (1=top, 2=sub, etc.)
	PageNumber int
	Children   []Section
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
