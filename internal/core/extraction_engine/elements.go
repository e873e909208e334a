package extraction_engine

// ElementCategory is the closed set of parsed-document element kinds the
// page formatter dispatches on.
type ElementCategory int

const (
	CategoryText ElementCategory = iota
	CategoryTitle
	CategoryListItem
	CategoryTable
	CategoryCode
	CategoryPageBreak
	CategoryOther
)

func (c ElementCategory) String() string {
	switch c {
	case CategoryText:
		return "text"
	case CategoryTitle:
		return "title"
	case CategoryListItem:
		return "list-item"
	case CategoryTable:
		return "table"
	case CategoryCode:
		return "code"
	case CategoryPageBreak:
		return "page-break"
	default:
		return "other"
	}
}

// Element is one parsed unit of a document stream.
// HTML carries structured table markup when the parser could infer it;
// Text is always the raw textual content.
type Element struct {
	Category ElementCategory
	Text     string
	HTML     string
}
