package extractor

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// videoIDPattern 从常见的 YouTube 链接形式中提取 11 位视频 ID。
var videoIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/)([A-Za-z0-9_-]{11})`)

const timedTextEndpoint = "https://video.google.com/timedtext"

// transcriptXML 对应 timedtext 接口返回的字幕文档，<text> 按时间戳升序排列。
type transcriptXML struct {
	Segments []struct {
		Content string `xml:",chardata"`
	} `xml:"text"`
}

// ParseVideoID 从 URL 中解析 YouTube 视频 ID，解析不出稳定 ID 视为提取失败。
func ParseVideoID(rawURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("无法从 URL 中解析视频 ID: %s", rawURL)
	}
	return m[1], nil
}

// extractTranscript 拉取视频字幕并按时间顺序以单个空格拼接。
func (e *extractor) extractTranscript(ctx context.Context, rawURL string) (string, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("lang", "en")
	q.Set("v", videoID)
	req, err := http.NewRequestWithContext(ctx, "GET", timedTextEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("创建字幕请求失败: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("拉取字幕失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("字幕接口返回非 200 状态码: %s", resp.Status)
	}

	var doc transcriptXML
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("解析字幕 XML 失败: %w", err)
	}
	if len(doc.Segments) == 0 {
		return "", fmt.Errorf("视频 %s 没有可用字幕", videoID)
	}

	parts := make([]string, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		if s := strings.TrimSpace(seg.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}
