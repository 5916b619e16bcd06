package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 上传相关常量
const (
	MimeVideo = "video/"
	MimeAudio = "audio/"
	MimeImage = "image/"
	MimePDF   = "application/pdf"

	MaxUploadSize = 512 << 20
)

// 课程编辑器允许上传的类型
var AllowedUploadTypes = []string{
	MimeVideo,
	MimeAudio,
	MimeImage,
	MimePDF,
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-powerpoint",
	"text/plain",
}
