package models

import "time"

// NewUpload carries what the Metadata Recorder needs to index a stored
// payload.
type NewUpload struct {
	Name             string  `json:"name"`
	Size             int64   `json:"size"`
	MimeType         string  `json:"mimeType"`
	StorageReceiptID string  `json:"storageReceiptId"`
	Encrypted        bool    `json:"encrypted"`
	EncryptionKey    *string `json:"encryptionKey,omitempty"`
	EncryptionNonce  *string `json:"encryptionNonce,omitempty"`
}

// UploadRecord is the index row for a stored payload. Only DeletedAt ever
// changes after creation.
type UploadRecord struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Size             int64      `json:"size"`
	MimeType         string     `json:"mimeType"`
	StorageReceiptID string     `json:"storageReceiptId"`
	Encrypted        bool       `json:"encrypted"`
	EncryptionKey    *string    `json:"encryptionKey,omitempty"`
	EncryptionNonce  *string    `json:"encryptionNonce,omitempty"`
	OwnerIdentity    string     `json:"ownerIdentity"`
	CreatedAt        time.Time  `json:"createdAt"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
}

// PendingRecord is a journaled upload whose bytes are stored but whose
// index write has not succeeded yet.
type PendingRecord struct {
	Upload    NewUpload
	Owner     string
	CreatedAt time.Time
	IndexedAt *time.Time
	RecordID  string
	LastError string
}
