package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMime 读取文件头识别 MIME 类型与扩展名
func DetectMime(reader io.Reader) (mimeType, ext string, err error) {
	mt, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", "", err
	}
	return mt.String(), mt.Extension(), nil
}

// ValidateMimeType 深度校验文件 MIME 类型
// allowedTypes: 允许的 MIME 前缀或完整类型，如 "image/", "video/", "application/pdf"
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	mimeType, _, err := DetectMime(reader)
	if err != nil {
		return "", err
	}

	base := strings.TrimSpace(strings.Split(mimeType, ";")[0])
	for _, allowed := range allowedTypes {
		if strings.HasPrefix(base, allowed) || base == allowed {
			return base, nil
		}
	}
	return base, fmt.Errorf("%w: %s", ErrUnsupportedMedia, base)
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeImage)
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeVideo) || mimeType == "application/x-mpegURL"
}

func IsAudio(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeAudio)
}
