package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultPart  = "word/document.xml"
	contentTypesPart = "[Content_Types].xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wpBlock matches one paragraph, with or without attributes.
	wpBlock = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	wtTag   = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	// Override elements list attributes in either order.
	overrideRe = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameRe = regexp.MustCompile(`PartName="([^"]+)"`)
)

// mainDocumentPart finds the main document part from [Content_Types].xml.
// Returns "" when the package does not declare one.
func mainDocumentPart(zr *zip.Reader) string {
	data, err := readZipPart(zr, contentTypesPart)
	if err != nil {
		return ""
	}
	for _, o := range overrideRe.FindAllString(string(data), -1) {
		if !strings.Contains(o, `ContentType="`+docxMainType+`"`) {
			continue
		}
		if m := partNameRe.FindStringSubmatch(o); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

// extractDOCX reads the main document part and returns one line per non-empty
// paragraph, paragraphs separated by a blank line.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	part := mainDocumentPart(zr)
	if part == "" {
		part = docxDefaultPart
	}
	docXML, err := readZipPart(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var paragraphs []string
	for _, p := range wpBlock.FindAllString(string(docXML), -1) {
		var b strings.Builder
		for _, t := range wtTag.FindAllStringSubmatch(p, -1) {
			b.WriteString(html.UnescapeString(t[1]))
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
