package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// wordDocumentPath is the main document body inside a .docx container.
const wordDocumentPath = "word/document.xml"

// runText matches <w:t>...</w:t> runs, with or without attributes
// (e.g. xml:space="preserve").
var runText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// paragraphEnd marks paragraph closes so extracted text keeps line structure.
var paragraphEnd = regexp.MustCompile(`</w:p>`)

// extractDOCX unpacks the OOXML container and concatenates the text runs of
// the main document, one line per paragraph.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}
	var doc []byte
	for _, f := range zr.File {
		if f.Name != wordDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		doc, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		break
	}
	if doc == nil {
		return "", fmt.Errorf("no %s in container", wordDocumentPath)
	}
	xmlStr := paragraphEnd.ReplaceAllString(string(doc), "\n")
	return extractDocxOrdered(xmlStr), nil
}

// extractDocxOrdered walks the document XML once, emitting run text in
// order and a newline at each paragraph close.
func extractDocxOrdered(xmlStr string) string {
	var buf strings.Builder
	for len(xmlStr) > 0 {
		run := runText.FindStringSubmatchIndex(xmlStr)
		para := strings.Index(xmlStr, "\n")
		switch {
		case run == nil && para < 0:
			return strings.TrimSpace(buf.String())
		case run == nil:
			buf.WriteByte('\n')
			xmlStr = xmlStr[para+1:]
		case para >= 0 && para < run[0]:
			buf.WriteByte('\n')
			xmlStr = xmlStr[para+1:]
		default:
			buf.WriteString(unescapeXML(xmlStr[run[2]:run[3]]))
			xmlStr = xmlStr[run[1]:]
		}
	}
	return strings.TrimSpace(buf.String())
}

var xmlReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescapeXML(s string) string {
	return xmlReplacer.Replace(s)
}
