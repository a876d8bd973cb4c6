package prompt

import (
	"errors"
	"fmt"
)

// 会話履歴の発話者
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// ErrInvalidRole は履歴に未知の発話者が含まれる場合に返される。
var ErrInvalidRole = errors.New("history entry type must be \"user\" or \"ai\"")

// Message は会話履歴の1件。
type Message struct {
	Role string `json:"type"`
	Text string `json:"text"`
}

// NormalizeHistory は履歴を検証し、maxを超える場合は直近max件のみを返す。
// maxが0以下の場合は履歴を使用しない。
func NormalizeHistory(entries []Message, max int) ([]Message, error) {
	for i, m := range entries {
		if m.Role != RoleUser && m.Role != RoleAI {
			return nil, fmt.Errorf("entry %d: %w", i, ErrInvalidRole)
		}
	}

	if max <= 0 {
		return nil, nil
	}
	if len(entries) > max {
		entries = entries[len(entries)-max:]
	}

	out := make([]Message, len(entries))
	copy(out, entries)
	return out, nil
}
