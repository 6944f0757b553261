package requirement

import (
	"context"
	"errors"
	"strings"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/audit"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CacheInvalidator 需求变更后同步刷新门控缓存
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// SubmissionOrphaner 删除需求时标记其提交记录，同 key 重新创建时恢复
type SubmissionOrphaner interface {
	OrphanByRequirement(ctx context.Context, key string) (int64, error)
	ReviveByRequirement(ctx context.Context, key string) (int64, error)
}

// CreateInput 创建自定义需求参数
type CreateInput struct {
	Title       string
	Description string
	File        *storage.Upload
}

// UpdateInput 修改需求参数，nil 字段表示不修改
type UpdateInput struct {
	Title       *string
	Description *string
	File        *storage.Upload
}

// DeleteResult 删除结果
type DeleteResult struct {
	Cleaned             bool  `json:"cleaned"`
	OrphanedSubmissions int64 `json:"orphanedSubmissions"`
}

// ServiceOption 服务可选项
type ServiceOption func(*Service)

// WithOrphaner 设置提交记录处理器
func WithOrphaner(o SubmissionOrphaner) ServiceOption {
	return func(s *Service) { s.orphaner = o }
}

// Service 需求目录服务
type Service struct {
	repo     *Repository
	files    storage.FileStore
	policy   storage.Policy
	cache    CacheInvalidator
	recorder audit.Recorder
	orphaner SubmissionOrphaner
	tracer   trace.Tracer
}

// NewService 创建需求目录服务
func NewService(repo *Repository, files storage.FileStore, policy storage.Policy, cache CacheInvalidator, recorder audit.Recorder, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		files:    files,
		policy:   policy,
		cache:    cache,
		recorder: recorder,
		tracer:   otel.Tracer("github.com/Locquiano101/CnscCodexMain-sub000/internal/requirement"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCustom 创建自定义需求
func (s *Service) CreateCustom(ctx context.Context, in CreateInput) (*Requirement, error) {
	ctx, span := s.tracer.Start(ctx, "RequirementService.CreateCustom")
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, common.Validation("Title is required")
	}
	key := Slugify(title)
	if key == "" {
		return nil, common.Validation("Title must contain letters or digits")
	}
	span.SetAttributes(attribute.String("requirement.key", key))

	taken, err := s.repo.KeyTaken(ctx, key, "")
	if err != nil {
		return nil, s.fail(span, err, "check key failed")
	}
	if taken {
		return nil, common.Conflict("Another requirement with similar title exists")
	}

	req := &Requirement{
		Key:         key,
		Type:        TypeCustom,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Enabled:     true,
		Removable:   true,
		Version:     1,
	}
	if actor, ok := auth.PrincipalFromContext(ctx); ok {
		req.CreatedBy = actor.ID
	}

	if in.File != nil {
		doc, err := s.storeFile(ctx, in.File)
		if err != nil {
			return nil, s.fail(span, err, "store file failed")
		}
		req.Document = *doc
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.discardFile(ctx, req.Document.Ref)
		return nil, s.fail(span, err, "create requirement failed")
	}

	var revived int64
	if s.orphaner != nil {
		revived, err = s.orphaner.ReviveByRequirement(ctx, key)
		if err != nil {
			logger.WithContext(ctx).Warn("恢复孤立提交记录失败", zap.String("key", key), zap.Error(err))
		}
	}

	s.invalidate(ctx)

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.EventRequirementCreate,
		TargetType: audit.TargetRequirement,
		TargetID:   req.ID,
		Meta:       map[string]any{"key": req.Key, "title": req.Title, "revivedSubmissions": revived},
	})
	if !req.Document.IsZero() {
		s.recordUpload(ctx, req)
	}

	logger.WithContext(ctx).Info("创建自定义需求",
		zap.String("requirement_id", req.ID),
		zap.String("key", req.Key),
	)
	return req, nil
}

// Update 修改标题、描述或替换附件，key 保持不变
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Requirement, error) {
	ctx, span := s.tracer.Start(ctx, "RequirementService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("requirement.id", id))

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err, "load requirement failed")
	}

	var changed []string

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, common.Validation("Title is required")
		}
		if title != req.Title {
			slug := Slugify(title)
			if slug == "" {
				return nil, common.Validation("Title must contain letters or digits")
			}
			taken, err := s.repo.KeyTaken(ctx, slug, req.ID)
			if err != nil {
				return nil, s.fail(span, err, "check key failed")
			}
			if taken {
				return nil, common.Conflict("Another requirement with similar title exists")
			}
			req.Title = title
			changed = append(changed, "title")
		}
	}

	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc != req.Description {
			req.Description = desc
			changed = append(changed, "description")
		}
	}

	previousRef := ""
	if in.File != nil {
		doc, err := s.storeFile(ctx, in.File)
		if err != nil {
			return nil, s.fail(span, err, "store file failed")
		}
		previousRef = req.Document.Ref
		req.Document = *doc
		req.Version++
		changed = append(changed, "document")
	}

	if len(changed) == 0 {
		return req, nil
	}

	if err := s.repo.Save(ctx, req); err != nil {
		if in.File != nil {
			s.discardFile(ctx, req.Document.Ref)
		}
		return nil, s.fail(span, err, "save requirement failed")
	}

	if previousRef != "" {
		s.discardFile(ctx, previousRef)
	}

	s.invalidate(ctx)

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.EventRequirementUpdate,
		TargetType: audit.TargetRequirement,
		TargetID:   req.ID,
		Meta:       map[string]any{"key": req.Key, "changed": changed},
	})
	if in.File != nil {
		s.recordUpload(ctx, req)
	}

	logger.WithContext(ctx).Info("修改需求",
		zap.String("requirement_id", req.ID),
		zap.Strings("changed", changed),
	)
	return req, nil
}

// Toggle 启用或禁用需求
func (s *Service) Toggle(ctx context.Context, id string, enabled bool) (*Requirement, error) {
	ctx, span := s.tracer.Start(ctx, "RequirementService.Toggle")
	defer span.End()
	span.SetAttributes(attribute.String("requirement.id", id), attribute.Bool("requirement.enabled", enabled))

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err, "load requirement failed")
	}

	previous := req.Enabled
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return nil, s.fail(span, err, "toggle requirement failed")
	}
	req.Enabled = enabled

	s.invalidate(ctx)

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.EventRequirementToggle,
		TargetType: audit.TargetRequirement,
		TargetID:   req.ID,
		Meta:       map[string]any{"key": req.Key, "previous": previous, "enabled": enabled},
	})

	logger.WithContext(ctx).Info("切换需求状态",
		zap.String("key", req.Key),
		zap.Bool("previous", previous),
		zap.Bool("enabled", enabled),
	)
	return req, nil
}

// Delete 删除自定义需求。附件清理失败只体现在 Cleaned 上。
func (s *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	ctx, span := s.tracer.Start(ctx, "RequirementService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("requirement.id", id))

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err, "load requirement failed")
	}
	if req.Type != TypeCustom || !req.Removable {
		return nil, common.Validation("Only removable custom requirements can be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, s.fail(span, err, "delete requirement failed")
	}

	result := &DeleteResult{Cleaned: true}
	log := logger.WithContext(ctx)

	if s.orphaner != nil {
		n, err := s.orphaner.OrphanByRequirement(ctx, req.Key)
		if err != nil {
			log.Warn("标记孤立提交记录失败", zap.String("key", req.Key), zap.Error(err))
		}
		result.OrphanedSubmissions = n
	}

	if req.Document.Ref != "" {
		if err := s.files.Delete(ctx, req.Document.Ref); err != nil {
			result.Cleaned = false
			log.Warn("清理需求附件失败", zap.String("ref", req.Document.Ref), zap.Error(err))
		}
	}

	s.invalidate(ctx)

	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.EventRequirementDelete,
		TargetType: audit.TargetRequirement,
		TargetID:   req.ID,
		Meta: map[string]any{
			"key":                 req.Key,
			"cleaned":             result.Cleaned,
			"orphanedSubmissions": result.OrphanedSubmissions,
		},
	})

	log.Info("删除自定义需求",
		zap.String("key", req.Key),
		zap.Bool("cleaned", result.Cleaned),
		zap.Int64("orphaned_submissions", result.OrphanedSubmissions),
	)
	return result, nil
}

// ListVisible 公开列表，只含启用的需求
func (s *Service) ListVisible(ctx context.Context) ([]VisibleRequirement, error) {
	reqs, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	visible := make([]VisibleRequirement, 0, len(reqs))
	for _, r := range reqs {
		visible = append(visible, VisibleRequirement{Key: r.Key, Title: r.Title, Type: r.Type})
	}
	return visible, nil
}

// ListAll 管理端列表
func (s *Service) ListAll(ctx context.Context, filter Filter) ([]Requirement, error) {
	return s.repo.List(ctx, filter)
}

// EnabledKeys 门控缓存加载器
func (s *Service) EnabledKeys(ctx context.Context) ([]string, error) {
	return s.repo.EnabledKeys(ctx)
}

// GetByKey 按 key 查询
func (s *Service) GetByKey(ctx context.Context, key string) (*Requirement, error) {
	return s.repo.GetByKey(ctx, key)
}

func (s *Service) storeFile(ctx context.Context, u *storage.Upload) (*storage.Document, error) {
	mimeType, err := s.policy.Inspect(u)
	if err != nil {
		return nil, err
	}
	return s.files.Save(ctx, u, mimeType)
}

func (s *Service) discardFile(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.files.Delete(ctx, ref); err != nil {
		logger.WithContext(ctx).Warn("清理附件失败", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *Service) recordUpload(ctx context.Context, req *Requirement) {
	s.recorder.Record(ctx, audit.Entry{
		Action:     audit.EventDocumentUpload,
		TargetType: audit.TargetRequirement,
		TargetID:   req.ID,
		Meta: map[string]any{
			"key":          req.Key,
			"ref":          req.Document.Ref,
			"originalName": req.Document.OriginalName,
			"mimeType":     req.Document.MimeType,
			"size":         req.Document.Size,
			"version":      req.Version,
		},
	})
}

// invalidate 失败只记录日志，缓存自身会标记为过期
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.WithContext(ctx).Warn("刷新门控缓存失败", zap.Error(err))
	}
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	if !isClientError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
	}
	return err
}

func isClientError(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr)
}
