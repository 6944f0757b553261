package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileStore 文件存储抽象
type FileStore interface {
	Save(ctx context.Context, u *Upload, mimeType string) (*Document, error)
	Delete(ctx context.Context, ref string) error
}

// LocalStore 本地磁盘存储
type LocalStore struct {
	basePath string
	now      func() time.Time
	logger   *zap.Logger
}

// NewLocalStore 创建本地存储，目录不存在时自动创建
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &LocalStore{
		basePath: basePath,
		now:      time.Now,
		logger:   logger.Get(),
	}, nil
}

// Save 写入文件并计算 SHA-256 校验和
func (s *LocalStore) Save(ctx context.Context, u *Upload, mimeType string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(u.Name))
	ref := uuid.NewString() + ext
	full := filepath.Join(s.basePath, ref)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("创建文件失败: %w", err)
	}

	hasher := sha256.New()
	written, err := io.Copy(f, io.TeeReader(u.Content, hasher))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}

	uploadedAt := s.now().UTC()
	s.logger.Debug("文件已保存", zap.String("ref", ref), zap.Int64("size", written))

	return &Document{
		Ref:          ref,
		OriginalName: filepath.Base(u.Name),
		MimeType:     mimeType,
		Size:         written,
		Checksum:     hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt:   &uploadedAt,
	}, nil
}

// Delete 删除文件，文件本就不存在时视为成功
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	// ref 由 Save 生成，不允许包含目录
	if filepath.Base(ref) != ref {
		return fmt.Errorf("非法文件引用: %s", ref)
	}
	if err := os.Remove(filepath.Join(s.basePath, ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// Path 返回文件在磁盘上的路径
func (s *LocalStore) Path(ref string) string {
	return filepath.Join(s.basePath, filepath.Base(ref))
}
