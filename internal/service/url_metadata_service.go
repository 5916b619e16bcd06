package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/logger"
	"course_studio_backend/pkg/security"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const maxPageBytes = 2 << 20

type URLMetadata struct {
	URL         string            `json:"url"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Image       string            `json:"image,omitempty"`
	SiteName    string            `json:"siteName,omitempty"`
	ContentType model.ContentType `json:"contentType"`
	Duration    *float64          `json:"duration,omitempty"`
}

// URLMetadataService 编辑器粘贴链接时抓取标题、描述、封面并推断内容类型
type URLMetadataService struct {
	Cache      MetadataCache
	HTTP       *http.Client
	Resolver   security.Resolver
	Timeout    time.Duration
	ProbeMedia bool
	Probe      func(target string) (*util.MediaInfo, error)

	mu       sync.Mutex
	inflight map[string]*lookup
}

type lookup struct {
	cancel context.CancelFunc
}

func NewURLMetadataService(cache MetadataCache, timeout time.Duration, probe bool) *URLMetadataService {
	if cache == nil {
		cache = NewMemoryMetadataCache()
	}
	return &URLMetadataService{
		Cache:      cache,
		HTTP:       security.PublicHTTPClient(),
		Timeout:    timeout,
		ProbeMedia: probe,
		Probe:      util.ProbeMedia,
		inflight:   make(map[string]*lookup),
	}
}

// FetchLatest 同一个编辑器的新请求会取消上一次尚未完成的抓取
func (s *URLMetadataService) FetchLatest(ctx context.Context, key, rawURL string) (*URLMetadata, error) {
	if key == "" {
		return s.Fetch(ctx, rawURL)
	}
	ctx, cancel := context.WithCancel(ctx)
	l := &lookup{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel()
	}
	s.inflight[key] = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.inflight[key] == l {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
		cancel()
	}()
	return s.Fetch(ctx, rawURL)
}

func (s *URLMetadataService) Fetch(ctx context.Context, rawURL string) (*URLMetadata, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", util.ErrInvalidURL, rawURL)
	}
	key := u.String()
	if cached, ok := s.Cache.Get(ctx, key); ok {
		return cached, nil
	}

	meta := &URLMetadata{URL: key, ContentType: authoring.DetectContentType(key)}
	if authoring.IsDirectMedia(key) {
		meta.Title = path.Base(u.Path)
		if s.ProbeMedia && s.Probe != nil {
			if err := security.CheckPublicHost(ctx, s.Resolver, u.Hostname()); err != nil {
				return nil, blockedOr(err, rawURL)
			}
			if info, err := s.Probe(key); err != nil {
				logger.Log.Warn("Media probe failed", zap.String("url", key), zap.Error(err))
			} else {
				meta.Duration = &info.Duration
			}
		}
		s.Cache.Set(ctx, key, meta)
		return meta, nil
	}

	if err := s.fetchPage(ctx, u, meta); err != nil {
		return nil, blockedOr(err, rawURL)
	}
	s.Cache.Set(ctx, key, meta)
	return meta, nil
}

// blockedOr 指向内部地址的链接按无效链接处理
func blockedOr(err error, rawURL string) error {
	if errors.Is(err, security.ErrBlockedAddress) {
		return fmt.Errorf("%w: %q: %v", util.ErrInvalidURL, rawURL, err)
	}
	return err
}

func (s *URLMetadataService) fetchPage(ctx context.Context, u *url.URL, meta *URLMetadata) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("User-Agent", "CourseStudioBot/1.0")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case util.IsVideo(mediaType):
		meta.ContentType = model.ContentVideo
		return nil
	case util.IsAudio(mediaType):
		meta.ContentType = model.ContentAudio
		return nil
	case util.IsImage(mediaType):
		meta.ContentType = model.ContentImage
		return nil
	case mediaType == util.MimePDF:
		meta.ContentType = model.ContentDocument
		return nil
	case mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml":
		return nil
	}

	parsePage(io.LimitReader(resp.Body, maxPageBytes), u, meta)
	return nil
}

// parsePage 只读 head 中的 title 与 og/description meta
func parsePage(r io.Reader, base *url.URL, meta *URLMetadata) {
	z := html.NewTokenizer(r)
	var title, ogTitle, description, ogDescription string
	inTitle := false
scan:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			break scan
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = tt == html.StartTagToken
			case "meta":
				key, content := metaAttrs(tok)
				switch key {
				case "og:title":
					ogTitle = content
				case "og:description":
					ogDescription = content
				case "description":
					description = content
				case "og:image":
					meta.Image = absoluteURL(base, content)
				case "og:site_name":
					meta.SiteName = content
				}
			case "body":
				break scan
			}
		case html.TextToken:
			if inTitle && title == "" {
				title = strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.Data == "title" {
				inTitle = false
			} else if tok.Data == "head" {
				break scan
			}
		}
	}
	meta.Title = firstNonEmpty(ogTitle, title)
	meta.Description = firstNonEmpty(ogDescription, description)
}

func metaAttrs(tok html.Token) (key, content string) {
	for _, a := range tok.Attr {
		switch strings.ToLower(a.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(a.Val))
			}
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	return key, content
}

func absoluteURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
