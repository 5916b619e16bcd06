package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"course_studio_backend/pkg/monitoring"
	"course_studio_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const maxErrorBodyBytes = 1024

type HTTPConfig struct {
	BaseURL  string
	APIToken string
	PageSize int
	Client   *http.Client
}

// HTTPBackend 通过 REST 接口访问 CMS
type HTTPBackend struct {
	baseURL  string
	pageSize int
	http     *http.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	client := cfg.Client
	if client == nil {
		// 记录类请求不设置超时，由调用方 context 控制
		client = &http.Client{}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &HTTPBackend{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: pageSize,
		http:     client,
		token:    cfg.APIToken,
	}
}

// SetToken 配置热更新时替换 API token
func (b *HTTPBackend) SetToken(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func (b *HTTPBackend) bearer(ctx context.Context) string {
	if t := bearerFrom(ctx); t != "" {
		return t
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

func (b *HTTPBackend) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if q.PageSize <= 0 {
		q.PageSize = b.pageSize
	}
	path := "/api/" + collection
	if qs := q.Values().Encode(); qs != "" {
		path += "?" + qs
	}
	var out []Record
	if err := b.do(ctx, "list", collection, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *HTTPBackend) Get(ctx context.Context, collection, documentID string, populate ...string) (*Record, error) {
	path := withPopulate("/api/"+collection+"/"+url.PathEscape(documentID), populate)
	var out []Record
	if err := b.do(ctx, "get", collection, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, opErr("get", collection, http.StatusNotFound, "empty response", nil)
	}
	return &out[0], nil
}

func (b *HTTPBackend) Create(ctx context.Context, collection string, data map[string]any, populate ...string) (*Record, error) {
	path := withPopulate("/api/"+collection, populate)
	var out []Record
	if err := b.do(ctx, "create", collection, http.MethodPost, path, map[string]any{"data": data}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, opErr("create", collection, 0, "empty response", nil)
	}
	return &out[0], nil
}

func (b *HTTPBackend) Update(ctx context.Context, collection, documentID string, data map[string]any, populate ...string) (*Record, error) {
	path := withPopulate("/api/"+collection+"/"+url.PathEscape(documentID), populate)
	var out []Record
	if err := b.do(ctx, "update", collection, http.MethodPut, path, map[string]any{"data": data}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, opErr("update", collection, 0, "empty response", nil)
	}
	return &out[0], nil
}

func (b *HTTPBackend) Delete(ctx context.Context, collection, documentID string) error {
	path := "/api/" + collection + "/" + url.PathEscape(documentID)
	return b.do(ctx, "delete", collection, http.MethodDelete, path, nil, nil)
}

func withPopulate(path string, populate []string) string {
	if qs := (Query{Populate: populate}).Values().Encode(); qs != "" {
		return path + "?" + qs
	}
	return path
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *HTTPBackend) do(ctx context.Context, op, collection, method, path string, in any, out *[]Record) (err error) {
	ctx, span := tracing.StartSpan(ctx, "cms."+op,
		attribute.String("cms.collection", collection),
		attribute.String("http.method", method),
	)
	start := time.Now()
	status := 0
	defer func() {
		monitoring.CMSRequestCounter.WithLabelValues(collection, op, strconv.Itoa(status)).Inc()
		monitoring.CMSRequestDuration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}()

	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, collection, 0, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return opErr(op, collection, 0, "build request failed", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := b.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return opErr(op, collection, 0, "request failed", err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, collection, status, "read response failed", err)
	}
	if status < 200 || status >= 300 {
		return opErr(op, collection, status, errorMessage(raw), nil)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return opErr(op, collection, status, "decode response failed", err)
	}
	*out = records
	return nil
}

// decodeRecords 兼容 {"data": ...} 信封以及 users 接口直接返回的数组/对象
func decodeRecords(raw []byte) ([]Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, err
		}
		_, hasData := keys["data"]
		_, hasErr := keys["error"]
		if hasData || hasErr {
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return nil, err
			}
			if env.Error != nil {
				return nil, errors.New(env.Error.Message)
			}
			raw = bytes.TrimSpace(env.Data)
		}
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []map[string]any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]Record, 0, len(items))
		for _, it := range items {
			out = append(out, RecordFromMap(it))
		}
		return out, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return []Record{RecordFromMap(obj)}, nil
}

func errorMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	if len(raw) > maxErrorBodyBytes {
		raw = raw[:maxErrorBodyBytes]
	}
	return fmt.Sprintf("%q", string(raw))
}
