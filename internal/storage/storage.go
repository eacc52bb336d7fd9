package storage

import "context"

// StoredObject describes an uploaded object and where it is publicly
// reachable.
type StoredObject struct {
	URL      string
	Path     string
	Width    int
	Height   int
	MimeType string
}

// Object is a downloaded object with its raw bytes.
type Object struct {
	Data        []byte
	ContentType string
	Size        int64
}

// Store is the object-storage contract the pipeline depends on. Upload
// places data under the given scope (typically a job id) and variant label
// and returns the public URL; Download retrieves a previously stored object
// by its storage path.
type Store interface {
	Upload(ctx context.Context, data []byte, mimeType, scope, variant string) (*StoredObject, error)
	Download(ctx context.Context, path string) (*Object, error)
}
