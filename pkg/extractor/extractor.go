// Package extractor 将一份原始来源（文件字节或远程链接）转换为 UTF-8 纯文本。
package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"notebook-rag-go/internal/config"
	"notebook-rag-go/internal/model"
)

// Error 是文本提取失败时返回的错误，携带来源类型和底层原因。
type Error struct {
	Kind model.SourceKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("文本提取失败 (kind=%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Input 描述一次提取请求。文件类来源携带 Data，URL 类来源携带 URL。
type Input struct {
	Kind model.SourceKind
	Data []byte
	URL  string
}

// Extractor 定义了文本提取操作。
type Extractor interface {
	Extract(ctx context.Context, in Input) (string, error)
}

type extractor struct {
	tika       *TikaClient
	httpClient *http.Client
}

// New 创建一个 Extractor 实例。fetchTimeout 约束网页与字幕抓取。
func New(tikaCfg config.TikaConfig, fetchTimeout time.Duration) Extractor {
	return &extractor{
		tika:       NewTikaClient(tikaCfg),
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// Extract 按来源类型分发到对应的提取逻辑。
// 五种类型是封闭集合，未知类型直接返回错误而不是静默跳过。
func (e *extractor) Extract(ctx context.Context, in Input) (string, error) {
	switch in.Kind {
	case model.KindPDF, model.KindDOCX:
		text, err := e.tika.ExtractText(ctx, in.Data, string(in.Kind))
		if err != nil {
			return "", &Error{Kind: in.Kind, Err: err}
		}
		return text, nil
	case model.KindText:
		// 非法字节序列替换为 U+FFFD，而不是报错
		return strings.ToValidUTF8(string(in.Data), "�"), nil
	case model.KindWebPage:
		text, err := e.extractWebPage(ctx, in.URL)
		if err != nil {
			return "", &Error{Kind: in.Kind, Err: err}
		}
		return text, nil
	case model.KindYouTube:
		text, err := e.extractTranscript(ctx, in.URL)
		if err != nil {
			return "", &Error{Kind: in.Kind, Err: err}
		}
		return text, nil
	default:
		return "", &Error{Kind: in.Kind, Err: fmt.Errorf("不支持的来源类型: %q", in.Kind)}
	}
}
