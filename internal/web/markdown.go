package web

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in model output is escaped; goldmark only emits it with html.WithUnsafe.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderItinerary converts the itinerary markdown to HTML.
func RenderItinerary(md string) (string, error) {
	if md == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("web: render markdown: %w", err)
	}
	return buf.String(), nil
}
