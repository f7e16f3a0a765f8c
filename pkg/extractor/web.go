package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// skippedTags 中的子树不包含正文，整体丢弃。
var skippedTags = map[string]struct{}{
	"script": {}, "style": {}, "nav": {}, "header": {}, "footer": {}, "noscript": {},
}

// extractWebPage 抓取网页并剥离非正文标记，返回可见文本。
func (e *extractor) extractWebPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("创建网页请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "notebook-rag-go/1.0")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("抓取网页失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("网页返回非 2xx 状态码: %s", resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("解析 HTML 失败: %w", err)
	}

	var sb strings.Builder
	collectText(doc, &sb)
	return strings.TrimSpace(sb.String()), nil
}

// collectText 深度优先遍历 DOM，收集可见文本节点，每段一行。
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		if _, skip := skippedTags[n.Data]; skip {
			return
		}
	}
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
