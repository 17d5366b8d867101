package models

import (
	"time"

	"github.com/google/uuid"
)

// CapturedImage is the stored metadata for one uploaded capture. The binary
// itself lives in the object store under ObjectKey.
type CapturedImage struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Label       string    `json:"label"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	ObjectKey   string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CapturedImageWithDownloadURL is returned by metadata reads and adds the
// API-relative path the client can fetch the bytes from.
type CapturedImageWithDownloadURL struct {
	CapturedImage
	DownloadURL string `json:"downloadUrl"`
}
