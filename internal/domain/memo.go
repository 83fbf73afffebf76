package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MemoID string

// Memo is embedded in a Member. Its ID is only unique within that member.
type Memo struct {
	ID        MemoID    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMemo(content string, now time.Time) Memo {
	return Memo{
		ID:        MemoID(uuid.NewString()),
		Content:   content,
		Timestamp: now.UTC(),
	}
}

// NormalizeContent rejects blank content. The content itself is kept as
// submitted.
func NormalizeContent(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrContentEmpty
	}
	return content, nil
}
