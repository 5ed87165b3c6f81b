package services

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/logger"
)

// FileUpload is one multipart part, already opened by the handler.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.ReadSeeker
}

type ImageRule struct {
	Name      string
	MinWidth  int
	MinHeight int
	MaxBytes  int64
}

var (
	AvatarRule    = ImageRule{Name: "avatar", MinWidth: 98, MinHeight: 98, MaxBytes: 4 << 20}
	CoverRule     = ImageRule{Name: "cover image", MinWidth: 2048, MinHeight: 1152, MaxBytes: 6 << 20}
	ThumbnailRule = ImageRule{Name: "thumbnail", MaxBytes: 6 << 20}
)

var allowedImageFormats = map[string]bool{"png": true, "jpeg": true, "gif": true}

// ValidateImage checks format, dimensions and size, then rewinds the reader
// so it can be uploaded.
func ValidateImage(f *FileUpload, rule ImageRule) error {
	if f == nil || f.Reader == nil {
		return apperror.InvalidArgument(rule.Name + " is required")
	}
	if rule.MaxBytes > 0 && f.Size > rule.MaxBytes {
		return apperror.InvalidArgument(fmt.Sprintf("%s must be smaller than %dMB", rule.Name, rule.MaxBytes>>20))
	}

	cfg, format, err := image.DecodeConfig(f.Reader)
	if err != nil || !allowedImageFormats[format] {
		return apperror.InvalidArgument(rule.Name + " must be a PNG, JPEG or GIF image")
	}
	if cfg.Width < rule.MinWidth || cfg.Height < rule.MinHeight {
		return apperror.InvalidArgument(fmt.Sprintf("%s must be at least %dx%d pixels", rule.Name, rule.MinWidth, rule.MinHeight))
	}

	if _, err := f.Reader.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", rule.Name, err)
	}
	f.ContentType = "image/" + format
	return nil
}

func ValidateVideo(f *FileUpload) error {
	if f == nil || f.Reader == nil {
		return apperror.InvalidArgument("video is required")
	}
	if f.Size <= 0 {
		return apperror.InvalidArgument("video is empty")
	}
	if !strings.HasPrefix(f.ContentType, "video/") {
		return apperror.InvalidArgument("video must have a video/* content type")
	}
	return nil
}

func uploadMedia(ctx context.Context, store MediaStorage, folder string, f *FileUpload) (models.Media, error) {
	obj, err := store.Upload(ctx, folder, f.Filename, f.Reader, f.Size, f.ContentType)
	if err != nil {
		return models.Media{}, apperror.Wrap(apperror.KindInternal, "failed to upload "+folder, err)
	}
	return models.Media{URL: obj.URL, StorageID: obj.StorageID}, nil
}

// discardUploads removes objects uploaded for a request that did not complete.
func discardUploads(ctx context.Context, store MediaStorage, log *logger.Logger, storageIDs ...string) {
	for _, id := range storageIDs {
		if err := store.Remove(ctx, id); err != nil {
			log.WithError(err).WithField("storage_id", id).Warn("Failed to remove orphaned upload")
		}
	}
}
