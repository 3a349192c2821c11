package documents

import "time"

// Document statuses. Transitions are monotonic: UPLOADED -> PARSING -> PARSED|FAILED,
// with reparse re-entering at PARSING from a terminal state.
const (
	StatusUploaded = "UPLOADED"
	StatusParsing  = "PARSING"
	StatusParsed   = "PARSED"
	StatusFailed   = "FAILED"
)

// Document represents an uploaded financial document and its parse state.
type Document struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	FileURL      string         `json:"fileUrl"`
	FileName     string         `json:"fileName"`
	SizeBytes    int64          `json:"sizeBytes"`
	Status       string         `json:"status"`
	ParsedData   map[string]any `json:"parsedData,omitempty"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// IsTerminal reports whether the document has reached a terminal parse state.
func (d Document) IsTerminal() bool {
	return d.Status == StatusParsed || d.Status == StatusFailed
}
