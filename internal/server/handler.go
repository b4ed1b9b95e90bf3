package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/docqa-assistant/server/internal/assistant/extract"
	"github.com/docqa-assistant/server/internal/assistant/model"
	errx "github.com/docqa-assistant/server/internal/core/error"
)

type handler struct {
	assistant  Assistant
	maxUpload  int64
	model      string
	cookieName string
	secure     bool
}

type askRequest struct {
	Question string `form:"question" json:"question" binding:"required"`
}

var templateFuncs = template.FuncMap{
	"isUser": func(m *schema.Message) bool {
		return m != nil && m.Role == schema.User
	},
}

// upload reads the multipart "file" field, capped at maxUpload, and hands it to
// the assistant.
func (h *handler) upload(c *gin.Context) (*model.Document, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &errx.AppError{
				Err:     err,
				Kind:    errx.KindValidation,
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("File is too large. The limit is %d MB.", h.maxUpload>>20),
			}
		}
		return nil, errx.Validation("Please choose a .pdf or .xlsx file to upload.")
	}
	if _, err := extract.KindForFilename(fh.Filename); err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errx.Extraction(err, "Could not read the uploaded file.")
	}
	defer f.Close()

	return h.assistant.Upload(c.Request.Context(), sessionID(c), fh.Filename, f)
}

// bindQuestion binds the question from a form or JSON body.
func (h *handler) bindQuestion(c *gin.Context) (string, error) {
	var req askRequest
	if err := c.ShouldBind(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return "", errx.Validation("Please enter a question.")
		}
		return "", errx.Validation(fmt.Sprintf("Invalid request: %v", err))
	}
	return req.Question, nil
}

func (h *handler) ask(c *gin.Context, question string) (*model.Turn, error) {
	return h.assistant.Ask(c.Request.Context(), model.AskInput{SessionID: sessionID(c), Question: question})
}

type messageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type documentDTO struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Units      int    `json:"units"`
	Chars      int    `json:"chars"`
	UploadedAt string `json:"uploaded_at"`
	Content    string `json:"content,omitempty"`
}

type sessionDTO struct {
	SessionID string       `json:"session_id"`
	Ready     bool         `json:"ready"`
	Document  *documentDTO `json:"document,omitempty"`
	Messages  []messageDTO `json:"messages"`
}

type turnDTO struct {
	Messages []messageDTO `json:"messages"`
}

func toMessageDTO(m *schema.Message) messageDTO {
	return messageDTO{Role: string(m.Role), Content: m.Content}
}

func toDocumentDTO(d *model.Document, withContent bool) *documentDTO {
	if d == nil {
		return nil
	}
	dto := &documentDTO{
		Name:       d.Name,
		Kind:       string(d.Kind),
		Units:      d.Units,
		Chars:      len(d.Content),
		UploadedAt: d.UploadedAt.Format(time.RFC3339),
	}
	if withContent {
		dto.Content = d.Content
	}
	return dto
}

func toSessionDTO(v *model.SessionView) sessionDTO {
	dto := sessionDTO{
		SessionID: v.SessionID,
		Ready:     v.Ready(),
		Document:  toDocumentDTO(v.Document, true),
		Messages:  []messageDTO{},
	}
	if v.Transcript != nil {
		for _, m := range v.Transcript.Messages {
			if m == nil {
				continue
			}
			dto.Messages = append(dto.Messages, toMessageDTO(m))
		}
	}
	return dto
}
