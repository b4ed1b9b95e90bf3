package model

import "github.com/cloudwego/eino/schema"

// AskInput is one chat submission.
type AskInput struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// Turn is the user/assistant pair produced by a successful question.
type Turn struct {
	User      *schema.Message `json:"user"`
	Assistant *schema.Message `json:"assistant"`
}

// SessionView is everything needed to render a session.
type SessionView struct {
	SessionID  string
	Document   *Document
	Transcript *Transcript
}

// Ready reports whether a document is loaded.
func (v *SessionView) Ready() bool {
	return v != nil && v.Document != nil
}
