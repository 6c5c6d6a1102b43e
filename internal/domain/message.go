package domain

import (
	"strings"
	"time"
)

const MaxMessageLen = 1000

// Message is immutable once appended to a history stream.
type Message struct {
	ID          string    `json:"id"`
	Room        string    `json:"room"`
	AuthorID    string    `json:"uuid"`
	DisplayName string    `json:"displayName"`
	Text        string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NormalizeText trims surrounding whitespace and bounds the length.
func NormalizeText(text string) (string, error) {
	t := strings.TrimSpace(text)
	t = strings.TrimSpace(truncateRunes(t, MaxMessageLen))
	if t == "" {
		return "", ErrEmptyMessage
	}
	return t, nil
}
