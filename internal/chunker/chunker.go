// Package chunker 将长文本切分为带重叠的定长词窗口，供向量化使用。
package chunker

import "strings"

// Draft 是一个尚未持久化的分块草稿，持久化后才会获得正式的分块 ID。
type Draft struct {
	Content    string
	ChunkIndex int // 0 起始、连续递增
	WordStart  int // [WordStart, WordEnd) 是窗口在全文词序列中的区间
	WordEnd    int
}

// Chunk 按空白分词后滑动窗口切分文本。
// size 是每个分块的目标词数，overlap 是相邻分块重叠的词数，
// 步长为 max(1, size-overlap)；窗口触及文本末尾后立即停止，
// 不会产生空窗口或重复的尾窗口。空文本返回 nil。
func Chunk(text string, size, overlap int) []Draft {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	var drafts []Draft
	index := 0
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		drafts = append(drafts, Draft{
			Content:    strings.Join(words[start:end], " "),
			ChunkIndex: index,
			WordStart:  start,
			WordEnd:    end,
		})
		index++
		if end == len(words) {
			break
		}
	}
	return drafts
}
