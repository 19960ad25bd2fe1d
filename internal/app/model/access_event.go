package model

import "time"

// AccessEvent is published for every successful content retrieval and archived in Postgres.
type AccessEvent struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	RecordID   string     `json:"record_id" gorm:"size:64;index;not null"`
	RecordType RecordType `json:"record_type" gorm:"size:16;not null"`
	IP         string     `json:"ip" gorm:"size:64"`
	UserAgent  string     `json:"user_agent" gorm:"type:text"`
	Country    string     `json:"country,omitempty" gorm:"size:8"`
	Burned     bool       `json:"burned" gorm:"not null;default:false"`
	Timestamp  time.Time  `json:"timestamp" gorm:"index"`
}

const (
	AccessStreamName     = "ACCESS"
	AccessStreamSubject  = "access.events"
	AccessConsumerName   = "access-archiver"
	AccessStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
