package extraction_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPagesSegmentsOnBreaks(t *testing.T) {
	elements := []Element{
		{Category: CategoryTitle, Text: "Introduction"},
		{Category: CategoryText, Text: "First page body."},
		{Category: CategoryPageBreak},
		{Category: CategoryText, Text: "Second page body."},
	}

	pages, err := FormatPages(context.Background(), elements, nil)
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].PageIndex)
	assert.Equal(t, "## Introduction\nFirst page body.", pages[0].Text)
	assert.True(t, pages[0].Status)
	assert.Equal(t, 1, pages[1].PageIndex)
	assert.Equal(t, "Second page body.", pages[1].Text)
}

func TestFormatPagesSkipsEmptyPageButAdvancesIndex(t *testing.T) {
	elements := []Element{
		{Category: CategoryText, Text: "page zero"},
		{Category: CategoryPageBreak},
		{Category: CategoryPageBreak}, // empty page 1
		{Category: CategoryText, Text: "page two"},
	}

	pages, err := FormatPages(context.Background(), elements, nil)
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].PageIndex)
	assert.Equal(t, 2, pages[1].PageIndex)
}

func TestFormatPagesNoBreaksSinglePage(t *testing.T) {
	elements := []Element{
		{Category: CategoryText, Text: "alpha"},
		{Category: CategoryText, Text: "beta"},
	}

	pages, err := FormatPages(context.Background(), elements, nil)
	require.NoError(t, err)

	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].PageIndex)
	assert.Equal(t, "alpha\nbeta", pages[0].Text)
}

func TestFormatPagesEmptyStream(t *testing.T) {
	var final FormatterProgress
	pages, err := FormatPages(context.Background(), nil, func(p FormatterProgress) { final = p })
	require.NoError(t, err)

	assert.Nil(t, pages)
	assert.True(t, final.Final)
	assert.Equal(t, float64(100), final.Percent)
}

func TestFormatPagesHeartbeat(t *testing.T) {
	var elements []Element
	for i := 0; i < 25; i++ {
		elements = append(elements, Element{Category: CategoryText, Text: "line"})
	}

	var beats []FormatterProgress
	_, err := FormatPages(context.Background(), elements, func(p FormatterProgress) { beats = append(beats, p) })
	require.NoError(t, err)

	require.NotEmpty(t, beats)
	last := beats[len(beats)-1]
	assert.True(t, last.Final)
	assert.Equal(t, float64(100), last.Percent)
	for _, b := range beats[:len(beats)-1] {
		assert.False(t, b.Final)
		assert.Less(t, b.Percent, float64(100))
	}
}

func TestFormatPagesStopsOnCancelledContext(t *testing.T) {
	var elements []Element
	for i := 0; i < 1000; i++ {
		elements = append(elements, Element{Category: CategoryText, Text: "line"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	var beats int
	_, err := FormatPages(ctx, elements, func(p FormatterProgress) {
		beats++
		cancel()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, beats, "no heartbeat may fire after cancellation")
}

func TestRenderElementCategories(t *testing.T) {
	tests := []struct {
		name string
		el   Element
		want string
	}{
		{"title", Element{Category: CategoryTitle, Text: "Heading"}, "## Heading"},
		{"list item", Element{Category: CategoryListItem, Text: "point"}, "- point"},
		{"numbered list passes through", Element{Category: CategoryListItem, Text: "1. first"}, "1. first"},
		{"paren numbered passes through", Element{Category: CategoryListItem, Text: "2) second"}, "2) second"},
		{"code fenced", Element{Category: CategoryCode, Text: "x := 1"}, "```\nx := 1\n```"},
		{"table prefers html", Element{Category: CategoryTable, Text: "a\tb", HTML: "<table>\n  <tr><td>a</td></tr>\n</table>"}, "\n<table> <tr><td>a</td></tr> </table>\n"},
		{"table without html falls back to text", Element{Category: CategoryTable, Text: "a\tb"}, "a\tb"},
		{"plain text", Element{Category: CategoryText, Text: "  hello  "}, "hello"},
		{"empty title dropped", Element{Category: CategoryTitle, Text: "  "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderElement(tt.el))
		})
	}
}
