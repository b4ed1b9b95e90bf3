package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docqa-assistant/server/internal/server/response"
)

// GetSession returns the document and transcript of the caller's session.
func (h *handler) GetSession(c *gin.Context) {
	view, err := h.assistant.View(c.Request.Context(), sessionID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, toSessionDTO(view))
}

// UploadDocument extracts the multipart "file" and makes it the session's document.
func (h *handler) UploadDocument(c *gin.Context) {
	doc, err := h.upload(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, toDocumentDTO(doc, false))
}

// PostMessage asks a question and returns the user/assistant pair.
func (h *handler) PostMessage(c *gin.Context) {
	question, err := h.bindQuestion(c)
	if err != nil {
		response.FromError(c, err)
		return
	}
	turn, err := h.ask(c, question)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, turnDTO{Messages: []messageDTO{toMessageDTO(turn.User), toMessageDTO(turn.Assistant)}})
}

// ClearMessages empties the transcript.
func (h *handler) ClearMessages(c *gin.Context) {
	if err := h.assistant.ClearTranscript(c.Request.Context(), sessionID(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// EndSession deletes the session and expires its cookie.
func (h *handler) EndSession(c *gin.Context) {
	if err := h.assistant.End(c.Request.Context(), sessionID(c)); err != nil {
		response.FromError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secure, true)
	response.Success(c, nil)
}
