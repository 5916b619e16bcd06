package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MediaUpload struct {
	URL         string            `json:"url"`
	Filename    string            `json:"filename"`
	MimeType    string            `json:"mimeType"`
	ContentType model.ContentType `json:"contentType"`
	Size        int64             `json:"size"`
	Duration    *float64          `json:"duration,omitempty"`
}

// MediaService 编辑器上传音视频、文档、图片
type MediaService struct {
	Storage    *StorageService
	ProbeMedia bool
}

func NewMediaService(storage *StorageService, probe bool) *MediaService {
	return &MediaService{Storage: storage, ProbeMedia: probe}
}

func (s *MediaService) Upload(ctx context.Context, header *multipart.FileHeader) (*MediaUpload, error) {
	if header.Size > util.MaxUploadSize {
		return nil, fmt.Errorf("%w: file too large", util.ErrUnsupportedMedia)
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mimeType, err := util.ValidateMimeType(file, util.AllowedUploadTypes)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(header.Filename))
	if ext == "" {
		if _, detected, err := util.DetectMime(file); err == nil {
			ext = detected
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	filename := fmt.Sprintf("media/%s/%s%s", time.Now().Format("2006/01"), uuid.NewString(), ext)

	url, err := s.Storage.Upload(ctx, filename, file, header.Size, mimeType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", header.Filename, err)
	}

	out := &MediaUpload{
		URL:         s.Storage.ResolveMediaURL(url),
		Filename:    filename,
		MimeType:    mimeType,
		ContentType: contentTypeForMime(mimeType),
		Size:        header.Size,
	}
	if s.ProbeMedia && (out.ContentType == model.ContentVideo || out.ContentType == model.ContentAudio) {
		target := out.URL
		if local, ok := s.Storage.LocalPath(filename); ok {
			target = local
		}
		if info, err := util.ProbeMedia(target); err != nil {
			logger.Log.Warn("Media probe failed", zap.String("file", filename), zap.Error(err))
		} else {
			out.Duration = &info.Duration
		}
	}
	return out, nil
}

func contentTypeForMime(mimeType string) model.ContentType {
	switch {
	case util.IsVideo(mimeType):
		return model.ContentVideo
	case util.IsAudio(mimeType):
		return model.ContentAudio
	case util.IsImage(mimeType):
		return model.ContentImage
	}
	return model.ContentDocument
}
