package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	samplePNG = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
)

func newUpload(name string, content []byte) *Upload {
	return &Upload{Name: name, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func TestPolicyInspect(t *testing.T) {
	policy := NewPolicy(1024)

	t.Run("PDF 通过并保留完整内容", func(t *testing.T) {
		u := newUpload("form.pdf", samplePDF)
		mime, err := policy.Inspect(u)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", mime)

		all, err := io.ReadAll(u.Content)
		require.NoError(t, err)
		assert.Equal(t, samplePDF, all)
	})

	t.Run("PNG 通过", func(t *testing.T) {
		mime, err := policy.Inspect(newUpload("logo.png", samplePNG))
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
	})

	t.Run("扩展名伪装的文本被拒绝", func(t *testing.T) {
		_, err := policy.Inspect(newUpload("fake.pdf", []byte("just some text")))
		assert.True(t, errors.Is(err, common.ErrUnsupportedMediaType))
	})

	t.Run("超过大小上限", func(t *testing.T) {
		big := append([]byte{}, samplePDF...)
		big = append(big, bytes.Repeat([]byte("x"), 2048)...)
		_, err := policy.Inspect(newUpload("big.pdf", big))
		assert.True(t, errors.Is(err, common.ErrPayloadTooLarge))
	})

	t.Run("缺少文件", func(t *testing.T) {
		_, err := policy.Inspect(nil)
		assert.True(t, errors.Is(err, common.ErrValidation))
	})
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	doc, err := store.Save(ctx, newUpload("Lab Safety.pdf", samplePDF), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Lab Safety.pdf", doc.OriginalName)
	assert.Equal(t, int64(len(samplePDF)), doc.Size)
	assert.Len(t, doc.Checksum, 64)
	assert.NotNil(t, doc.UploadedAt)
	assert.False(t, doc.IsZero())

	data, err := os.ReadFile(store.Path(doc.Ref))
	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)

	require.NoError(t, store.Delete(ctx, doc.Ref))
	_, err = os.Stat(store.Path(doc.Ref))
	assert.True(t, os.IsNotExist(err))

	t.Run("重复删除视为成功", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, doc.Ref))
	})

	t.Run("拒绝带目录的引用", func(t *testing.T) {
		assert.Error(t, store.Delete(ctx, "../etc/passwd"))
	})
}
