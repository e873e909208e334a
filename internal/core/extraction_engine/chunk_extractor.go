package extraction_engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/markdave123-py/Extracta/internal/models"
)

// linkPathPrefix is the fixed link-back path pattern stored on every
// chunk so retrieval UIs can point at the original upload.
const linkPathPrefix = "/user-uploaded/"

// Chunker splits extracted pages into overlapping, retrieval-sized
// segments, preferring paragraph, then sentence/word boundaries before
// degrading to hard cuts.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ",", "."}),
		),
	}
}

// ChunkID derives the deterministic identifier for one chunk. The same
// (filename, owner ids, sequence number) always yields the same id, so
// re-ingesting a file overwrites its chunks instead of duplicating them.
func ChunkID(filename, userID, chatID string, seq int) string {
	name := fmt.Sprintf("%s_%s_%s_chunk_%d", filename, userID, chatID, seq)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// DeriveFileID builds the stable file id for a caller-scoped upload.
func DeriveFileID(filename, userID, chatID string) string {
	name := fmt.Sprintf("%s_%s_%s", filename, userID, chatID)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// ChunkPages turns an extraction result into chunks plus their ids.
// Chunk sequence numbers run across the whole file, not per page.
func (c *Chunker) ChunkPages(result *models.ExtractionResult, userID, chatID string) ([]models.Chunk, []string, error) {
	if result == nil {
		return nil, nil, fmt.Errorf("nil extraction result")
	}
	if userID == "" || chatID == "" {
		return nil, nil, fmt.Errorf("user and conversation ids must be non-empty")
	}
	if len(result.Pages) == 0 {
		return nil, nil, nil
	}

	linkPath := linkPathPrefix + result.Filename

	var chunks []models.Chunk
	for _, page := range result.Pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		pieces, err := c.splitter.SplitText(text)
		if err != nil {
			return nil, nil, fmt.Errorf("split page %d: %w", page.PageIndex, err)
		}
		for _, piece := range pieces {
			chunks = append(chunks, models.Chunk{
				Content:    piece,
				FileName:   result.Filename,
				UserID:     userID,
				ChatID:     chatID,
				PageNumber: page.PageIndex,
				LinkPath:   linkPath,
			})
		}
	}

	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = ChunkID(result.Filename, userID, chatID, i)
	}
	return chunks, ids, nil
}
