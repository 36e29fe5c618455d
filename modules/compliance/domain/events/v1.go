package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicImportCommittedV1        = "compliance.import.committed.v1"
	TopicReportVersionPublishedV1 = "compliance.report_version.published.v1"
	EventVersionV1                = 1
)

type ImportCommittedEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	EventVersion int       `json:"event_version"`
	RequestID    string    `json:"request_id,omitempty"`
	Kind         string    `json:"kind"`
	Rows         int       `json:"rows"`
	Created      int       `json:"created"`
	Updated      int       `json:"updated"`
	AreasCreated int       `json:"areas_created"`
	CommittedAt  time.Time `json:"committed_at"`
}

type ReportVersionPublishedEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	EventVersion int       `json:"event_version"`
	RequestID    string    `json:"request_id,omitempty"`
	ReportID     string    `json:"report_id"`
	VersionID    uuid.UUID `json:"version_id"`
	Version      int       `json:"version"`
	PublishedAt  time.Time `json:"published_at"`
}
