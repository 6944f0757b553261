package storage

import (
	"bytes"
	"io"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"

	"github.com/gabriel-vasile/mimetype"
)

// Document 已保存文件的引用，作为嵌入字段持久化（列名前缀 document_）
type Document struct {
	Ref          string     `json:"ref,omitempty" gorm:"type:varchar(255)"`
	OriginalName string     `json:"originalName,omitempty" gorm:"type:varchar(255)"`
	MimeType     string     `json:"mimeType,omitempty" gorm:"type:varchar(100)"`
	Size         int64      `json:"size,omitempty"`
	Checksum     string     `json:"checksum,omitempty" gorm:"type:varchar(64)"`
	UploadedAt   *time.Time `json:"uploadedAt,omitempty"`
}

// IsZero 是否没有关联文件
func (d Document) IsZero() bool {
	return d.Ref == ""
}

// Upload 待保存的上传文件
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// 允许上传的文档类型
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/webp",
}

// sniffLen 内容嗅探读取的字节数
const sniffLen = 3072

// Policy 上传校验策略：大小上限 + 基于内容嗅探的类型白名单
type Policy struct {
	MaxSize      int64
	AllowedTypes []string
}

// NewPolicy 创建上传策略
func NewPolicy(maxSize int64) Policy {
	return Policy{MaxSize: maxSize, AllowedTypes: DefaultAllowedTypes}
}

// Inspect 校验上传文件并返回检测到的 MIME 类型。
// 嗅探读取的字节会被拼回 u.Content，调用方随后可以完整读取。
func (p Policy) Inspect(u *Upload) (string, error) {
	if u == nil || u.Content == nil {
		return "", common.Validation("File is required")
	}
	if p.MaxSize > 0 && u.Size > p.MaxSize {
		return "", common.PayloadTooLarge("File exceeds the maximum size of %d bytes", p.MaxSize)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]
	u.Content = io.MultiReader(bytes.NewReader(head), u.Content)

	detected := mimetype.Detect(head)
	for _, allowed := range p.AllowedTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", common.UnsupportedMediaType("Unsupported file type %s; allowed: PDF, PNG, JPEG, WEBP", detected.String())
}
