package model

import "time"

// ================ Config ================
type SessionConfig struct {
	Store         string        `envconfig:"SESSION_STORE" default:"memory"`
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	CookieName    string        `envconfig:"SESSION_COOKIE_NAME" default:"docqa_session"`
	ResetOnUpload bool          `envconfig:"SESSION_RESET_ON_UPLOAD" default:"false"`
}

type GenerationConfig struct {
	URL   string `envconfig:"GENERATION_URL" default:"http://localhost:11434/api/generate"`
	Model string `envconfig:"GENERATION_MODEL" default:"llama2"`
	// Zero leaves the transport default in place (no deadline).
	Timeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"0s"`
}

type PromptConfig struct {
	AssistantRole string `envconfig:"PROMPT_ASSISTANT_ROLE" default:"financial analyst assistant"`
}

type UploadConfig struct {
	MaxMB int64 `envconfig:"MAX_UPLOAD_MB" default:"200"`
}

// MaxBytes returns the upload cap in bytes.
func (c UploadConfig) MaxBytes() int64 {
	if c.MaxMB <= 0 {
		return 200 << 20
	}
	return c.MaxMB << 20
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)
