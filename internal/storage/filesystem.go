package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scanbay/internal/config"
	"scanbay/internal/services"
)

// FilesystemStore keeps objects under a local root directory and serves them
// through the daemon's /files/ handler at the configured public base URL.
type FilesystemStore struct {
	root    string
	baseURL string
}

// NewFilesystemStore creates a store rooted at cfg.FilesDir. The root must
// already exist (config.EnsureDirectories creates it at startup).
func NewFilesystemStore(cfg *config.Config) (*FilesystemStore, error) {
	root := strings.TrimSpace(cfg.Paths.FilesDir)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", "files directory not configured", nil)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", "files directory unavailable", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", fmt.Sprintf("%s is not a directory", root), nil)
	}
	return &FilesystemStore{
		root:    root,
		baseURL: strings.TrimRight(cfg.Paths.PublicBaseURL, "/"),
	}, nil
}

// Upload writes data under scope/variant and returns its public URL. Image
// dimensions are decoded when the payload is a supported image format and
// left zero otherwise.
func (s *FilesystemStore) Upload(ctx context.Context, data []byte, mimeType, scope, variant string) (*StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "storage", "upload", "empty object", nil)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	name := objectName(variant, mimeType)
	rel := path.Join(sanitizeSegment(scope), name)
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "storage", "upload", "create scope directory", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "storage", "upload", "write object", err)
	}

	obj := &StoredObject{
		URL:      s.baseURL + "/files/" + rel,
		Path:     rel,
		MimeType: mimeType,
	}
	if cfgImg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		obj.Width = cfgImg.Width
		obj.Height = cfgImg.Height
	}
	return obj, nil
}

// Download reads a previously uploaded object by its storage path.
func (s *FilesystemStore) Download(ctx context.Context, objectPath string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, ok := cleanObjectPath(objectPath)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "storage", "download", fmt.Sprintf("invalid object path %q", objectPath), nil)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "storage", "download", fmt.Sprintf("object %s", rel), nil)
		}
		return nil, services.Wrap(services.ErrExternalTool, "storage", "download", "read object", err)
	}
	return &Object{
		Data:        data,
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
	}, nil
}

// Root returns the local directory backing the store.
func (s *FilesystemStore) Root() string {
	return s.root
}

func objectName(variant, mimeType string) string {
	base := sanitizeSegment(variant)
	if base == "" {
		base = "object"
	}
	return base + "-" + uuid.NewString()[:8] + extensionFor(mimeType)
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

func cleanObjectPath(objectPath string) (string, bool) {
	rel := path.Clean(strings.TrimPrefix(strings.TrimSpace(objectPath), "/"))
	if rel == "" || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}
