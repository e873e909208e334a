package extraction_engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/Extracta/internal/core"
	"github.com/markdave123-py/Extracta/internal/models"
)

// WordExtractor performs local extraction for the Word family.
// .docx files are partitioned into typed elements straight from
// word/document.xml; legacy .doc files fall back to docconv plain-text
// conversion, which yields an element stream without page breaks.
type WordExtractor struct {
	logger *slog.Logger
}

func NewWordExtractor(logger *slog.Logger) *WordExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &WordExtractor{logger: logger}
}

// Extract partitions the document and formats it into pages, reporting
// heartbeats through the callback. It returns early with the context
// error when ctx is cancelled mid-stream.
func (e *WordExtractor) Extract(ctx context.Context, content []byte, filename string, heartbeat func(FormatterProgress)) (*models.ExtractionResult, error) {
	var (
		elements []Element
		err      error
	)

	switch core.FileExtension(filename) {
	case ".docx":
		elements, err = partitionDocx(ctx, content)
	case ".doc":
		elements, err = e.partitionLegacyDoc(content)
	default:
		return nil, core.NewValidationError("unsupported word format %q", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", filename, err)
	}

	e.logger.Info("document partitioned", "filename", filename, "elements", len(elements))

	pages, err := FormatPages(ctx, elements, heartbeat)
	if err != nil {
		return nil, err
	}

	successCount := 0
	for _, p := range pages {
		if p.Status {
			successCount++
		}
	}

	status := "failed"
	if successCount > 0 {
		status = "success"
	}

	result := &models.ExtractionResult{
		Filename:     filename,
		TotalPages:   len(pages),
		Pages:        pages,
		SuccessCount: successCount,
		FailedCount:  len(pages) - successCount,
		Status:       status,
	}
	if status == "failed" {
		result.Error = "no content found"
	}

	e.logger.Info("word extraction completed",
		"filename", filename, "pages", len(pages), "successful", successCount)

	return result, nil
}

// partitionLegacyDoc converts a .doc through docconv and splits the body
// into plain text elements, one per non-blank line.
func (e *WordExtractor) partitionLegacyDoc(content []byte) ([]Element, error) {
	res, err := docconv.Convert(bytes.NewReader(content), "application/msword", false)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}

	var elements []Element
	for _, line := range strings.Split(res.Body, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		elements = append(elements, Element{Category: CategoryText, Text: line})
	}
	return elements, nil
}

// docx XML element names we care about inside word/document.xml.
const (
	tagParagraph = "p"
	tagTable     = "tbl"
	tagRow       = "tr"
	tagCell      = "tc"
	tagText      = "t"
	tagBreak     = "br"
	tagTab       = "tab"
	tagParaProps = "pPr"
	tagParaStyle = "pStyle"
	tagNumProps  = "numPr"
)

// partitionDocx walks word/document.xml and produces the typed element
// stream the page formatter consumes. Paragraph styles map to
// categories: Heading*/Title -> title, ListParagraph or explicit
// numbering -> list item, code-ish styles -> code; w:br type="page"
// becomes a page-break marker at its position in the stream. The walk
// aborts with the context error once ctx is cancelled.
func partitionDocx(ctx context.Context, content []byte) ([]Element, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("word/document.xml not found in archive")
	}
	defer docXML.Close()

	dec := xml.NewDecoder(docXML)
	var elements []Element

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case tagParagraph:
			parsed, err := parseParagraph(dec, start)
			if err != nil {
				return nil, err
			}
			elements = append(elements, parsed...)
		case tagTable:
			el, err := parseTable(dec, start)
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
		}
	}

	return elements, nil
}

// parseParagraph consumes one w:p and returns its elements in document
// order: the paragraph text and any page-break marker it contains.
func parseParagraph(dec *xml.Decoder, start xml.StartElement) ([]Element, error) {
	var (
		text          strings.Builder
		style         string
		numbered      bool
		pageBreak     bool
		breakPrecedes bool // break seen before any text
	)

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode paragraph: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case tagParaStyle:
				style = attrVal(t, "val")
			case tagNumProps:
				numbered = true
			case tagBreak:
				if attrVal(t, "type") == "page" {
					pageBreak = true
					breakPrecedes = text.Len() == 0
				}
			case tagText:
				inner, err := collectText(dec)
				if err != nil {
					return nil, err
				}
				text.WriteString(inner)
				depth-- // collectText consumed the matching end element
			case tagTab:
				text.WriteString("\t")
			}
		case xml.EndElement:
			depth--
		}
	}

	el := Element{Category: categoryForStyle(style, numbered), Text: text.String()}

	var out []Element
	switch {
	case pageBreak && breakPrecedes:
		out = append(out, Element{Category: CategoryPageBreak})
		out = append(out, el)
	case pageBreak:
		out = append(out, el)
		out = append(out, Element{Category: CategoryPageBreak})
	default:
		out = append(out, el)
	}
	return out, nil
}

// parseTable consumes one w:tbl and renders it both as an HTML table and
// as a tab-separated text fallback.
func parseTable(dec *xml.Decoder, start xml.StartElement) (Element, error) {
	var (
		html     strings.Builder
		textRows []string
		cells    []string
		cellText strings.Builder
		inCell   bool
	)
	html.WriteString("<table>")

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return Element{}, fmt.Errorf("decode table: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case tagRow:
				cells = nil
			case tagCell:
				inCell = true
				cellText.Reset()
			case tagText:
				inner, err := collectText(dec)
				if err != nil {
					return Element{}, err
				}
				if inCell {
					cellText.WriteString(inner)
				}
				depth--
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case tagCell:
				inCell = false
				cells = append(cells, strings.TrimSpace(cellText.String()))
			case tagRow:
				html.WriteString("<tr>")
				for _, c := range cells {
					html.WriteString("<td>")
					_ = xml.EscapeText(&html, []byte(c))
					html.WriteString("</td>")
				}
				html.WriteString("</tr>")
				textRows = append(textRows, strings.Join(cells, "\t"))
			}
		}
	}
	html.WriteString("</table>")

	return Element{
		Category: CategoryTable,
		Text:     strings.Join(textRows, "\n"),
		HTML:     html.String(),
	}, nil
}

// collectText reads character data up to the end of the current element.
func collectText(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("decode text run: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return b.String(), nil
		}
	}
}

func categoryForStyle(style string, numbered bool) ElementCategory {
	switch {
	case strings.HasPrefix(style, "Heading"), style == "Title":
		return CategoryTitle
	case style == "ListParagraph", numbered:
		return CategoryListItem
	case style == "Code", style == "SourceCode", style == "HTMLPreformatted":
		return CategoryCode
	case style == "":
		return CategoryText
	default:
		return CategoryText
	}
}

func attrVal(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
