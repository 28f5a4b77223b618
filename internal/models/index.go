package models

import "time"

type User struct {
	ID        string
	Wallet    string
	CreatedAt time.Time
}

// ShareLink grants read access to one UploadRecord without a login.
type ShareLink struct {
	ID            string     `json:"id"`
	FileID        string     `json:"fileId"`
	OwnerID       string     `json:"-"`
	Key           string     `json:"key"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	MaxDownloads  *int       `json:"maxDownloads,omitempty"`
	DownloadCount int        `json:"downloadCount"`
	PasswordHash  *string    `json:"-"`
	HasPassword   bool       `json:"hasPassword"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// NewShareLink holds the options of a share link request.
type NewShareLink struct {
	FileID       string     `json:"fileId"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	MaxDownloads *int       `json:"maxDownloads,omitempty"`
	Password     *string    `json:"password,omitempty"`
}

// Stats summarizes one owner's live uploads.
type Stats struct {
	TotalFiles     int64          `json:"totalFiles"`
	TotalSize      int64          `json:"totalSize"`
	EncryptedFiles int64          `json:"encryptedFiles"`
	RecentUploads  []UploadRecord `json:"recentUploads"`
}
