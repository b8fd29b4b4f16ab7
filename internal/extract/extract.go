// Package extract turns uploaded résumé and mission documents into plain text
// suitable for prompt construction.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cvlex/internal/util"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"
)

// Extract reads the staged file at path and returns its sanitized text.
// Documents that yield no text, including corrupted ones, fail with an error
// matching util.ErrNoExtractableText.
func Extract(ctx context.Context, path, mimeHint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read staged document: %w", err)
	}
	return FromBytes(Detect(mimeHint, path, data), data)
}

// FromBytes extracts text from an in-memory document of the given MIME type.
func FromBytes(mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", util.ErrNoExtractableText
	}
	var (
		text string
		err  error
	)
	switch mime {
	case MIMEPDF:
		text, err = pdfText(data)
	case MIMEDocx:
		text, err = docxText(data)
	case MIMEText:
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", util.ErrUnsupportedType, mime)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrNoExtractableText, err)
	}
	text = util.SanitizeText(text)
	if text == "" {
		return "", util.ErrNoExtractableText
	}
	return text, nil
}

// Detect picks the document type from the multipart content type, then the
// file extension, then the leading magic bytes.
func Detect(mimeHint, name string, data []byte) string {
	hint := strings.ToLower(strings.TrimSpace(mimeHint))
	if i := strings.Index(hint, ";"); i >= 0 {
		hint = strings.TrimSpace(hint[:i])
	}
	switch hint {
	case MIMEPDF, MIMEDocx, MIMEText:
		return hint
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return MIMEPDF
	case ".docx":
		return MIMEDocx
	case ".txt":
		return MIMEText
	}
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return MIMEPDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return MIMEDocx
	}
	// Uploads without a usable hint or extension are treated as PDF.
	return MIMEPDF
}

func pdfText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	defer doc.Close()
	return stripXML(doc.Editable().GetContent()), nil
}

// stripXML drops the WordprocessingML markup docx returns, keeping paragraph
// breaks.
func stripXML(s string) string {
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
