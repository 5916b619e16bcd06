package authoring

import (
	"net/url"
	"path"
	"strings"

	"course_studio_backend/internal/model"
)

var (
	videoHosts = []string{"youtube.com", "youtu.be", "vimeo.com", "loom.com", "wistia.com", "bilibili.com"}
	audioHosts = []string{"soundcloud.com", "spotify.com", "anchor.fm"}

	extTypes = map[string]model.ContentType{
		".mp4": model.ContentVideo, ".mov": model.ContentVideo, ".webm": model.ContentVideo,
		".mkv": model.ContentVideo, ".avi": model.ContentVideo, ".m3u8": model.ContentVideo,
		".mp3": model.ContentAudio, ".wav": model.ContentAudio, ".ogg": model.ContentAudio,
		".m4a": model.ContentAudio, ".aac": model.ContentAudio, ".flac": model.ContentAudio,
		".pdf": model.ContentDocument, ".doc": model.ContentDocument, ".docx": model.ContentDocument,
		".ppt": model.ContentDocument, ".pptx": model.ContentDocument, ".xls": model.ContentDocument,
		".xlsx": model.ContentDocument, ".txt": model.ContentDocument,
		".png": model.ContentImage, ".jpg": model.ContentImage, ".jpeg": model.ContentImage,
		".gif": model.ContentImage, ".webp": model.ContentImage, ".svg": model.ContentImage,
	}
)

// DetectContentType 根据域名和扩展名推断内容类型，无法判断时为 url
func DetectContentType(rawURL string) model.ContentType {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return model.ContentURL
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if matchHost(host, videoHosts) {
		return model.ContentVideo
	}
	if matchHost(host, audioHosts) {
		return model.ContentAudio
	}
	if t, ok := extTypes[strings.ToLower(path.Ext(u.Path))]; ok {
		return t
	}
	return model.ContentURL
}

// IsDirectMedia 直链音视频文件，可用 ffprobe 探测时长
func IsDirectMedia(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	t, ok := extTypes[strings.ToLower(path.Ext(u.Path))]
	return ok && (t == model.ContentVideo || t == model.ContentAudio)
}

func matchHost(host string, list []string) bool {
	for _, h := range list {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
