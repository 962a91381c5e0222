package types

import (
	"time"

	"github.com/google/uuid"
)

// FileKind is the classified kind of an inbound document
type FileKind string

const (
	KindResume      FileKind = "resume"
	KindCertificate FileKind = "certificate"
	KindGeneral     FileKind = "general"
	KindUnknown     FileKind = "unknown"
)

// FileStatus is the lifecycle status of a stored file
type FileStatus string

const (
	FileStatusActive   FileStatus = "active"
	FileStatusArchived FileStatus = "archived"
	FileStatusDeleted  FileStatus = "deleted"
)

// Directory returns the storage subdirectory for files of this kind
func (k FileKind) Directory() string {
	switch k {
	case KindResume:
		return "resume"
	case KindCertificate:
		return "certificates"
	default:
		return "documents"
	}
}

// Valid reports whether k is a persistable kind
func (k FileKind) Valid() bool {
	switch k {
	case KindResume, KindCertificate, KindGeneral:
		return true
	}
	return false
}

// Attachment is a raw inbound file. It lives only for the duration of an
// ingestion request and is discarded once stored.
type Attachment struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// StoredFile is the persisted record of a classified attachment
type StoredFile struct {
	ID               uuid.UUID         `json:"id"`
	OriginalName     string            `json:"original_name"`
	FileURL          string            `json:"file_url"`
	MIMEType         string            `json:"mime_type"`
	Size             int64             `json:"size"`
	Kind             FileKind          `json:"kind"`
	Status           FileStatus        `json:"status"`
	ReferenceID      *uuid.UUID        `json:"reference_id,omitempty"`
	ApplicationID    *uuid.UUID        `json:"application_id,omitempty"`
	ContentHash      string            `json:"content_hash"`
	AnalysisMetadata *AnalysisMetadata `json:"analysis_metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
