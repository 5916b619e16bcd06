package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"course_studio_backend/internal/config"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
)

// CopyrightChecker 对单个内容做版权检查
type CopyrightChecker interface {
	Check(ctx context.Context, content model.CourseContent) (model.CopyrightCheck, error)
}

// HTTPCopyrightChecker 调用外部版权检测服务
type HTTPCopyrightChecker struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
}

func NewHTTPCopyrightChecker(cfg config.CopyrightConfig, client *http.Client) *HTTPCopyrightChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPCopyrightChecker{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		http:     client,
	}
}

type copyrightRequest struct {
	ContentID string `json:"contentId"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Article   string `json:"article,omitempty"`
}

type copyrightResponse struct {
	Status     string   `json:"status"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
}

func (c *HTTPCopyrightChecker) Check(ctx context.Context, content model.CourseContent) (model.CopyrightCheck, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(copyrightRequest{
		ContentID: content.DocumentID,
		Type:      string(content.Type),
		Title:     content.Title,
		URL:       content.URL,
		Article:   content.Article,
	}); err != nil {
		return model.CopyrightCheck{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/check", &buf)
	if err != nil {
		return model.CopyrightCheck{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.CopyrightCheck{}, fmt.Errorf("copyright check request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.CopyrightCheck{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.CopyrightCheck{}, fmt.Errorf("copyright check status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out copyrightResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.CopyrightCheck{}, fmt.Errorf("decode copyright response: %w", err)
	}
	now := time.Now()
	check := model.CopyrightCheck{
		Status:     normalizeCopyrightStatus(out.Status),
		Violations: out.Violations,
		Warnings:   out.Warnings,
		CheckedAt:  &now,
	}
	if check.Status == model.CopyrightPassed && len(check.Violations) > 0 {
		check.Status = model.CopyrightFailed
	}
	return check, nil
}

func normalizeCopyrightStatus(s string) model.CopyrightStatus {
	switch model.CopyrightStatus(strings.ToLower(strings.TrimSpace(s))) {
	case model.CopyrightPassed:
		return model.CopyrightPassed
	case model.CopyrightFailed:
		return model.CopyrightFailed
	case model.CopyrightChecking:
		return model.CopyrightChecking
	}
	return model.CopyrightPending
}

// DisabledCopyrightChecker 未配置检测服务时使用
type DisabledCopyrightChecker struct{}

func (DisabledCopyrightChecker) Check(ctx context.Context, content model.CourseContent) (model.CopyrightCheck, error) {
	return model.CopyrightCheck{}, util.ErrCopyrightDisabled
}
