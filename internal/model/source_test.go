package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceKind(t *testing.T) {
	tests := []struct {
		input   string
		want    SourceKind
		wantErr bool
	}{
		{"pdf", KindPDF, false},
		{"docx", KindDOCX, false},
		{"text", KindText, false},
		{"url", KindWebPage, false},
		{"youtube", KindYouTube, false},
		{"PDF", "", true}, // 类型是封闭集合，不做大小写归一
		{"audio", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		kind, err := ParseSourceKind(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input=%q", tt.input)
			continue
		}
		require.NoError(t, err, "input=%q", tt.input)
		assert.Equal(t, tt.want, kind)
	}
}

func TestSourceKind_IsURLBased(t *testing.T) {
	assert.True(t, KindWebPage.IsURLBased())
	assert.True(t, KindYouTube.IsURLBased())
	assert.False(t, KindPDF.IsURLBased())
	assert.False(t, KindDOCX.IsURLBased())
	assert.False(t, KindText.IsURLBased())
}
