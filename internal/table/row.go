package table

import (
	"time"

	"github.com/docgrid/docgrid/internal/extraction"
)

// Row is one extracted document in the shared table. Rows are immutable once
// created; the only destructive operation is a full table reset.
type Row struct {
	ID          string            `json:"id"`
	Data        extraction.Record `json:"data"`
	SourceName  string            `json:"source_name"`
	ContentType string            `json:"content_type"`
	CreatedAt   time.Time         `json:"created_at"`
}
