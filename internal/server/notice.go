package server

import (
	errx "github.com/docqa-assistant/server/internal/core/error"
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is an inline message shown above the transcript.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// noticeFor decides how a failure is presented: missing input is a warning,
// everything else an error.
func noticeFor(err error) Notice {
	switch errx.KindOf(err) {
	case errx.KindNoDocument, errx.KindValidation:
		return Notice{Level: NoticeWarning, Text: errx.MessageOf(err)}
	default:
		return Notice{Level: NoticeError, Text: errx.MessageOf(err)}
	}
}
