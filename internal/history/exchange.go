package history

import "time"

// Exchange is one handled chat message and what the bot did with it.
type Exchange struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	UserText    string    `json:"user_text"`
	Decision    string    `json:"decision,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
	APIStatus   int       `json:"api_status,omitempty"`
	Reply       string    `json:"reply,omitempty"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
