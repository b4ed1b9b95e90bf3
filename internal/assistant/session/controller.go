// Package session sequences uploads and questions for one browser session.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/docqa-assistant/server/internal/assistant/extract"
	"github.com/docqa-assistant/server/internal/assistant/model"
	"github.com/docqa-assistant/server/internal/assistant/prompts"
	errx "github.com/docqa-assistant/server/internal/core/error"
	logx "github.com/docqa-assistant/server/pkg/logger"
)

// DocumentExtractor turns an uploaded file into text.
type DocumentExtractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (*extract.Result, error)
}

// Generator produces an answer for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

type Config struct {
	Model         string
	Prompt        model.PromptConfig
	ResetOnUpload bool
}

// Controller owns the session state machine. A session is Empty until a document
// has been extracted and Ready afterwards; only Ready sessions answer questions.
type Controller struct {
	store     model.SessionStore
	extractor DocumentExtractor
	generator Generator
	config    Config
	now       func() time.Time
}

func NewController(store model.SessionStore, extractor DocumentExtractor, generator Generator, config Config) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("document extractor is nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is nil")
	}
	return &Controller{
		store:     store,
		extractor: extractor,
		generator: generator,
		config:    config,
		now:       time.Now,
	}, nil
}

// Upload extracts filename and makes it the session's document, even when no text
// was found in it. On failure the previous document, if any, stays in place.
func (c *Controller) Upload(ctx context.Context, sessionID, filename string, r io.Reader) (*model.Document, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}

	res, err := c.extractor.Extract(ctx, filename, r)
	if err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Str("file", filename).Msg("document extraction failed")
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		logx.Warn().Str("sessionID", sessionID).Str("file", filename).Msg("document has no extractable text")
	}

	doc := &model.Document{
		Name:       filename,
		Kind:       res.Kind,
		Content:    res.Text,
		Units:      res.Units,
		UploadedAt: c.now().UTC(),
	}
	if err := c.store.SaveDocument(ctx, sessionID, doc); err != nil {
		return nil, err
	}
	if c.config.ResetOnUpload {
		if err := c.store.ClearTranscript(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	logx.Info().
		Str("sessionID", sessionID).
		Str("file", filename).
		Str("kind", string(doc.Kind)).
		Int("units", doc.Units).
		Int("chars", len(doc.Content)).
		Msg("document processed")
	return doc, nil
}

// Ask answers a question from the current document. The user and assistant
// messages are appended together only when generation succeeds.
func (c *Controller) Ask(ctx context.Context, in model.AskInput) (*model.Turn, error) {
	if err := checkSessionID(in.SessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Question) == "" {
		return nil, errx.Validation("Please enter a question.")
	}

	doc, err := c.store.LoadDocument(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		logx.Warn().Str("sessionID", in.SessionID).Msg("question received before any document was uploaded")
		return nil, errx.NoDocument()
	}

	prompt, err := prompts.RenderGrounding(ctx, c.config.Prompt, doc.Content, in.Question)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", in.SessionID).Msg("failed to render grounding prompt")
		return nil, errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}

	answer, err := c.generator.Generate(ctx, prompt, c.config.Model)
	if err != nil {
		return nil, err
	}

	turn := &model.Turn{
		User:      schema.UserMessage(in.Question),
		Assistant: schema.AssistantMessage(answer, nil),
	}
	if err := c.store.AppendMessages(ctx, in.SessionID, turn.User, turn.Assistant); err != nil {
		return nil, err
	}
	return turn, nil
}

// View returns the session's document and transcript.
func (c *Controller) View(ctx context.Context, sessionID string) (*model.SessionView, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}
	doc, err := c.store.LoadDocument(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	transcript, err := c.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.SessionView{SessionID: sessionID, Document: doc, Transcript: transcript}, nil
}

// ClearTranscript empties the transcript and keeps the document.
func (c *Controller) ClearTranscript(ctx context.Context, sessionID string) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}
	return c.store.ClearTranscript(ctx, sessionID)
}

// End forgets everything stored for the session.
func (c *Controller) End(ctx context.Context, sessionID string) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	logx.Info().Str("sessionID", sessionID).Msg("session ended")
	return nil
}

func checkSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errx.Validation("session id is required")
	}
	return nil
}
