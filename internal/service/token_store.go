package service

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"course_studio_backend/internal/config"

	"github.com/gin-gonic/gin"
)

const (
	minTokenTTLDays = 3
	maxTokenTTLDays = 7
	pendingEmailTTL = 24 * time.Hour
)

type tokenCookie struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // unix 毫秒
}

// TokenStore 把登录凭证连同过期时间写入 cookie
type TokenStore struct {
	Config config.CookieConfig
	Now    func() time.Time
}

func NewTokenStore(cfg config.CookieConfig) *TokenStore {
	return &TokenStore{Config: cfg, Now: time.Now}
}

func (s *TokenStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// defaultTTLDays 配置值限制在 3~7 天
func (s *TokenStore) defaultTTLDays() int {
	d := s.Config.TTLDays
	if d < minTokenTTLDays {
		d = minTokenTTLDays
	}
	if d > maxTokenTTLDays {
		d = maxTokenTTLDays
	}
	return d
}

func (s *TokenStore) Set(c *gin.Context, token string, ttlDays int) time.Time {
	if ttlDays <= 0 {
		ttlDays = s.defaultTTLDays()
	}
	ttl := time.Duration(ttlDays) * 24 * time.Hour
	expiry := s.now().Add(ttl)

	raw, _ := json.Marshal(tokenCookie{Token: token, Expiry: expiry.UnixMilli()})
	s.write(c, s.Config.TokenName, string(raw), int(ttl.Seconds()))
	return expiry
}

// Get 过期或 JSON 损坏时删除 cookie；非 JSON 的旧格式直接返回原值
func (s *TokenStore) Get(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(s.Config.TokenName)
	if err != nil || strings.TrimSpace(raw) == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return raw, true
	}

	var tc tokenCookie
	if err := json.Unmarshal([]byte(raw), &tc); err != nil || tc.Token == "" || s.now().UnixMilli() >= tc.Expiry {
		s.Clear(c)
		return "", false
	}
	return tc.Token, true
}

func (s *TokenStore) Clear(c *gin.Context) {
	s.write(c, s.Config.TokenName, "", -1)
}

func (s *TokenStore) SetPendingEmail(c *gin.Context, email string) {
	s.write(c, s.Config.PendingEmailName, email, int(pendingEmailTTL.Seconds()))
}

func (s *TokenStore) PendingEmail(c *gin.Context) string {
	v, err := c.Cookie(s.Config.PendingEmailName)
	if err != nil {
		return ""
	}
	return v
}

func (s *TokenStore) ClearPendingEmail(c *gin.Context) {
	s.write(c, s.Config.PendingEmailName, "", -1)
}

func (s *TokenStore) write(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", isHTTPS(c.Request), true)
}

func isHTTPS(r *http.Request) bool {
	if r == nil {
		return false
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
