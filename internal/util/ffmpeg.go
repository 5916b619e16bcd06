package util

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// MediaInfo ffprobe 结果摘要
type MediaInfo struct {
	Duration float64 `json:"duration"` // 秒
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Format   string  `json:"format"`
	Size     int64   `json:"size,omitempty"`
}

// ProbeMedia 探测本地文件或远程地址的媒体信息
func ProbeMedia(target string) (*MediaInfo, error) {
	jsonOutput, err := ffmpeg.Probe(target)
	if err != nil {
		return nil, fmt.Errorf("获取媒体信息失败: %w", err)
	}
	return parseProbe(jsonOutput)
}

func parseProbe(jsonOutput string) (*MediaInfo, error) {
	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
			Size     string `json:"size"`
			Format   string `json:"format_name"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("解析媒体信息失败: %w", err)
	}

	info := &MediaInfo{Format: "unknown"}
	for _, stream := range result.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}
	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if s, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.Size = s
	}
	if parts := strings.Split(result.Format.Format, ","); parts[0] != "" {
		info.Format = parts[0]
	}
	return info, nil
}

// ProbeAvailable 检查 ffprobe 是否已安装
func ProbeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
