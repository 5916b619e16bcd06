package cms

import "context"

// 集合名
const (
	CollectionQuizAttempts        = "quiz-attempts"
	CollectionQuizAttemptAnswers  = "quiz-attempt-answers"
	CollectionCertificateIssuance = "certificate-issuances"
	CollectionCertificatePrograms = "certificate-programs"
	CollectionUsers               = "users"
	CollectionCourses             = "courses"
	CollectionCourseMaterials     = "course-materials"
	CollectionCourseContents      = "course-contents"
	CollectionCourseQuizLines     = "course-quiz-lines"
)

// Backend 无头 CMS 的通用增删改查
type Backend interface {
	List(ctx context.Context, collection string, q Query) ([]Record, error)
	Get(ctx context.Context, collection, documentID string, populate ...string) (*Record, error)
	Create(ctx context.Context, collection string, data map[string]any, populate ...string) (*Record, error)
	Update(ctx context.Context, collection, documentID string, data map[string]any, populate ...string) (*Record, error)
	Delete(ctx context.Context, collection, documentID string) error
}

type bearerKey struct{}

// WithBearer 为单次请求指定用户凭证，覆盖配置中的 API token
func WithBearer(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(bearerKey{}).(string)
	return s
}
