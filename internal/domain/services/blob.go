package services

import "context"

// BlobStore keeps image attachments referenced from persisted messages.
type BlobStore interface {
	// UploadImage stores base64-encoded image bytes as "{name}.png" and returns a
	// time-limited read URL.
	UploadImage(ctx context.Context, name, base64Data string) (string, error)
	// DeletePrefix removes every blob whose name starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
