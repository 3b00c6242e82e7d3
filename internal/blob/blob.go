// Package blob stores uploaded images behind an opaque reference.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"github.com/gabriel-vasile/mimetype"
)

var logg = logger.New()

// Store is the blob store collaborator. Refs are opaque to callers.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

var (
	ErrNotImage = apperr.New(apperr.Validation, "Not an image! Please upload only images.")
	ErrTooLarge = apperr.New(apperr.Validation, "Image exceeds the upload size limit")
)

// SaveImage validates an uploaded file as an image no larger than maxBytes and
// stores it under <prefix>/<prefix>-<ownerID>-<unixnano><ext>.
func SaveImage(ctx context.Context, s Store, prefix, ownerID string, fh *multipart.FileHeader, maxBytes int64) (string, error) {
	if fh.Size > maxBytes {
		return "", ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotImage
	}

	key := fmt.Sprintf("%s/%s-%s-%d%s", prefix, strings.TrimSuffix(prefix, "s"), ownerID, time.Now().UnixNano(), mt.Extension())
	ref, err := s.Put(ctx, key, bytes.NewReader(data), mt.String())
	if err != nil {
		logg.Error("blob", "Failed to store image", err)
		return "", fmt.Errorf("store image: %w", err)
	}
	return ref, nil
}

// Release deletes ref if it is set. Failures are logged and returned.
func Release(ctx context.Context, s Store, ref string) error {
	if ref == "" {
		return nil
	}
	if err := s.Delete(ctx, ref); err != nil {
		logg.Error("blob", "Failed to release image", err)
		return err
	}
	return nil
}

// URLOf resolves ref to a display URL, or "" when there is no image.
func URLOf(s Store, ref string) string {
	if ref == "" || s == nil {
		return ""
	}
	return s.URL(ref)
}

// ResolvePost fills the display URLs on p, its author snapshot and its comments.
func ResolvePost(s Store, p *models.Post) {
	p.ImageURL = URLOf(s, p.ImageRef)
	if p.Author != nil {
		p.Author.AvatarURL = URLOf(s, p.Author.AvatarRef)
	}
	for i := range p.Comments {
		p.Comments[i].AvatarURL = URLOf(s, p.Comments[i].AuthorAvatar)
	}
}

func ResolveComments(s Store, comments []models.Comment) {
	for i := range comments {
		comments[i].AvatarURL = URLOf(s, comments[i].AuthorAvatar)
	}
}

func ResolveAccount(s Store, a *models.Account) {
	a.AvatarURL = URLOf(s, a.AvatarRef)
}
