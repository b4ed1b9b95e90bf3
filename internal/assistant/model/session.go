package model

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// DocumentKind is the format a document was extracted from.
type DocumentKind string

const (
	KindPDF         DocumentKind = "pdf"
	KindSpreadsheet DocumentKind = "xlsx"
)

// Document is the extracted text of the most recently uploaded file.
type Document struct {
	Name       string       `json:"name"`
	Kind       DocumentKind `json:"kind"`
	Content    string       `json:"content"`
	Units      int          `json:"units"` // pages for PDF, sheets for spreadsheets
	UploadedAt time.Time    `json:"uploaded_at"`
}

// Transcript is the ordered user/assistant history of one session.
type Transcript struct {
	SessionID string
	Messages  []*schema.Message
}

// Len returns the number of messages in the transcript.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Messages)
}

type SessionStore interface {
	// SaveDocument replaces the session's document.
	SaveDocument(ctx context.Context, sessionID string, doc *Document) error

	// LoadDocument returns the session's document, or nil when none was stored.
	LoadDocument(ctx context.Context, sessionID string) (*Document, error)

	// AppendMessages appends all messages to the transcript in a single write.
	AppendMessages(ctx context.Context, sessionID string, messages ...*schema.Message) error

	// LoadTranscript returns the session's transcript; empty when none exists.
	LoadTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	// ClearTranscript removes every transcript entry but keeps the document.
	ClearTranscript(ctx context.Context, sessionID string) error

	// Delete removes everything stored for the session.
	Delete(ctx context.Context, sessionID string) error
}
