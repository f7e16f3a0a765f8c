package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"notebook-rag-go/internal/config"
)

// kindContentTypes 将文档类来源映射到 Tika 所需的 MIME 类型。
var kindContentTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// TikaClient 是 Apache Tika 服务器的客户端，负责 PDF/DOCX 的文本提取。
// Tika 以空行分隔各页/各段落，空白页不产生输出，与上层的拼接约定一致。
type TikaClient struct {
	serverURL string
}

// NewTikaClient 创建一个新的 Tika 客户端实例。
func NewTikaClient(cfg config.TikaConfig) *TikaClient {
	return &TikaClient{serverURL: cfg.ServerURL}
}

// ExtractText 将文件字节提交给 Tika 并返回纯文本。
func (c *TikaClient) ExtractText(ctx context.Context, data []byte, kind string) (string, error) {
	contentType := kindContentTypes[kind]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建 Tika 请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}

	return buf.String(), nil
}
