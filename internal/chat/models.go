package chat

import "time"

type Operation string

const (
	OpTranscript Operation = "transcript"
	OpAsk        Operation = "ask"
	OpAction     Operation = "action"
	OpSuggest    Operation = "suggested_questions"
)

type ExchangeStatus string

const (
	ExchangeSucceeded ExchangeStatus = "succeeded"
	ExchangeFailed    ExchangeStatus = "failed"
)

// Exchange is one completed router operation in the audit log. Question and
// Result are longtext: a long video's transcript exceeds MySQL TEXT's 64 KiB.
type Exchange struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	RequestID string    `gorm:"type:varchar(64);index" json:"request_id"`
	VideoID   string    `gorm:"type:varchar(255);not null;index:idx_exchange_video_created,priority:1" json:"video_id"`
	Operation Operation `gorm:"type:varchar(32);not null" json:"operation"`
	Action    string    `gorm:"type:varchar(32)" json:"action,omitempty"`
	Question  string    `gorm:"type:longtext" json:"question,omitempty"`
	Result    string    `gorm:"type:longtext" json:"result,omitempty"`

	Status ExchangeStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	DurationMs int64     `gorm:"not null" json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index:idx_exchange_video_created,priority:2" json:"created_at"`
}

func (Exchange) TableName() string { return "exchanges" }
