package models

import "time"

// VoiceHistoryEntry — запись в nexusAiVoiceHistory.
type VoiceHistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Voice     string    `json:"voice"`
	Provider  string    `json:"provider"` // openai | fallback
	CreatedAt time.Time `json:"timestamp"`
}
