package model

// UserSummary 尝试/证书记录中冗余的用户展示信息
type UserSummary struct {
	ID          int64  `json:"id"`
	DocumentID  string `json:"documentId"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type Avatar struct {
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
	Mime   string `json:"mime,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// UserProfile 归一化后的用户资料
type UserProfile struct {
	ID           int64   `json:"id"`
	DocumentID   string  `json:"documentId"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	DisplayName  string  `json:"displayName"`
	Bio          string  `json:"bio"`
	Avatar       *Avatar `json:"avatar,omitempty"`
	MinGroupSize *int    `json:"minGroupSize,omitempty"`
	MaxGroupSize *int    `json:"maxGroupSize,omitempty"`
}

// UserIdentifier 数字 id 与 documentId 至少提供一个
type UserIdentifier struct {
	ID         int64  `json:"id,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleAuthor  UserRole = "author"
	RoleLearner UserRole = "learner"
)
