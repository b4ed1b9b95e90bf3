package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docqa-assistant/server/internal/assistant/extract"
	"github.com/docqa-assistant/server/internal/assistant/model"
	errx "github.com/docqa-assistant/server/internal/core/error"
	logx "github.com/docqa-assistant/server/pkg/logger"
)

const pageTitle = "Financial Document Q&A Assistant"

type pageData struct {
	Title   string
	Model   string
	Accept  string
	MaxMB   int64
	View    *model.SessionView
	Notices []Notice
}

// render loads the session and renders the whole page, like a full rerun.
func (h *handler) render(c *gin.Context, status int, notices ...Notice) {
	view, err := h.assistant.View(c.Request.Context(), sessionID(c))
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID(c)).Msg("failed to load session for rendering")
		notices = append(notices, noticeFor(err))
		view = &model.SessionView{SessionID: sessionID(c)}
		if status < http.StatusBadRequest {
			status = errx.StatusOf(err)
		}
	}
	c.HTML(status, "index.html", pageData{
		Title:   pageTitle,
		Model:   h.model,
		Accept:  strings.Join(extract.SupportedExtensions, ","),
		MaxMB:   h.maxUpload >> 20,
		View:    view,
		Notices: notices,
	})
}

func (h *handler) ShowPage(c *gin.Context) {
	h.render(c, http.StatusOK)
}

func (h *handler) UploadPage(c *gin.Context) {
	doc, err := h.upload(c)
	if err != nil {
		h.render(c, errx.StatusOf(err), noticeFor(err))
		return
	}
	if strings.TrimSpace(doc.Content) == "" {
		h.render(c, http.StatusOK, Notice{Level: NoticeWarning, Text: fmt.Sprintf("No text could be extracted from %s.", doc.Name)})
		return
	}
	h.render(c, http.StatusOK, Notice{Level: NoticeSuccess, Text: "Document processed successfully! You can now ask questions."})
}

func (h *handler) AskPage(c *gin.Context) {
	question, err := h.bindQuestion(c)
	if err != nil {
		h.render(c, errx.StatusOf(err), noticeFor(err))
		return
	}
	if _, err := h.ask(c, question); err != nil {
		h.render(c, errx.StatusOf(err), noticeFor(err))
		return
	}
	h.render(c, http.StatusOK)
}

func (h *handler) ResetPage(c *gin.Context) {
	if err := h.assistant.ClearTranscript(c.Request.Context(), sessionID(c)); err != nil {
		h.render(c, errx.StatusOf(err), noticeFor(err))
		return
	}
	h.render(c, http.StatusOK)
}
