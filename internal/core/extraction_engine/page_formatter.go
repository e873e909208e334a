package extraction_engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/markdave123-py/Extracta/internal/models"
)

// heartbeatEvery is the minimum element interval between progress
// callbacks while formatting.
const heartbeatEvery = 10

var numberedItemPattern = regexp.MustCompile(`^\d+[.)]\s+`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// FormatterProgress is the heartbeat payload emitted while a document
// element stream is being turned into pages.
type FormatterProgress struct {
	ElementsDone  int
	TotalElements int
	Pages         int
	Percent       float64
	Final         bool
}

// renderElement turns one element into its markdown-ish line.
// Returns "" for elements that are empty after trimming.
func renderElement(el Element) string {
	text := strings.TrimSpace(el.Text)

	switch el.Category {
	case CategoryTitle:
		if text == "" {
			return ""
		}
		return "## " + text
	case CategoryListItem:
		if text == "" {
			return ""
		}
		// Already-numbered items pass through unchanged.
		if numberedItemPattern.MatchString(text) {
			return text
		}
		return "- " + text
	case CategoryTable:
		if html := strings.TrimSpace(el.HTML); html != "" {
			return "\n" + whitespaceRun.ReplaceAllString(html, " ") + "\n"
		}
		return text
	case CategoryCode:
		if text == "" {
			return ""
		}
		return "```\n" + text + "\n```"
	default:
		return text
	}
}

// FormatPages converts an ordered element stream into page-segmented
// text. A page-break marker finalizes the current page (when it has
// content) and advances the page index; a stream without any break
// markers yields exactly one page holding everything. heartbeat fires at
// minimum every ten elements and at every page boundary, capped below
// 100 percent until the final call. Formatting stops as soon as ctx is
// cancelled and the context error is returned.
func FormatPages(ctx context.Context, elements []Element, heartbeat func(FormatterProgress)) ([]models.Page, error) {
	total := len(elements)
	if total == 0 {
		if heartbeat != nil {
			heartbeat(FormatterProgress{Percent: 100, Final: true})
		}
		return nil, nil
	}

	var (
		pages     []models.Page
		lines     []string
		pageIndex int
	)

	beat := func(done int, final bool) {
		if heartbeat == nil {
			return
		}
		percent := float64(done) / float64(total) * 100
		if !final && percent >= 100 {
			percent = 99
		}
		if final {
			percent = 100
		}
		heartbeat(FormatterProgress{
			ElementsDone:  done,
			TotalElements: total,
			Pages:         len(pages),
			Percent:       percent,
			Final:         final,
		})
	}

	finalize := func() {
		text := joinLines(lines)
		if text != "" {
			pages = append(pages, models.Page{
				PageIndex: pageIndex,
				Text:      text,
				Status:    true,
			})
		}
		lines = nil
	}

	for i, el := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if el.Category == CategoryPageBreak {
			finalize()
			pageIndex++
			beat(i+1, false)
			continue
		}
		if line := renderElement(el); line != "" {
			lines = append(lines, line)
		}
		if (i+1)%heartbeatEvery == 0 {
			beat(i+1, false)
		}
	}
	finalize()

	// No break markers produced a page, but the stream had content:
	// emit everything as a single page 0.
	if len(pages) == 0 {
		var all []string
		for _, el := range elements {
			if el.Category == CategoryPageBreak {
				continue
			}
			if line := renderElement(el); line != "" {
				all = append(all, line)
			}
		}
		if text := joinLines(all); text != "" {
			pages = append(pages, models.Page{PageIndex: 0, Text: text, Status: true})
		}
	}

	beat(total, true)
	return pages, nil
}

// joinLines joins rendered lines, strips per-line trailing whitespace
// and trims the result.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	joined := strings.Join(lines, "\n")
	parts := strings.Split(joined, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimRight(p, " \t")
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
