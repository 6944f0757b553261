package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/audit"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/notification"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/requirement"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequirementLookup 查询需求是否存在
type RequirementLookup interface {
	GetByKey(ctx context.Context, key string) (*requirement.Requirement, error)
}

// SubmitInput 提交参数
type SubmitInput struct {
	OrganizationProfile string
	File                *storage.Upload
}

// TransitionInput 状态变更参数
type TransitionInput struct {
	Status string
	Notes  string
}

// ListQuery 审核端列表参数
type ListQuery struct {
	Status Status
	common.PaginationRequest
}

// ServiceOption 服务可选项
type ServiceOption func(*Service)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// Service 提交与审核流程
type Service struct {
	repo         *Repository
	requirements RequirementLookup
	files        storage.FileStore
	policy       storage.Policy
	recorder     audit.Recorder
	notifier     notification.Dispatcher
	now          func() time.Time
	tracer       trace.Tracer
}

// NewService 创建提交服务
func NewService(
	repo *Repository,
	requirements RequirementLookup,
	files storage.FileStore,
	policy storage.Policy,
	recorder audit.Recorder,
	notifier notification.Dispatcher,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:         repo,
		requirements: requirements,
		files:        files,
		policy:       policy,
		recorder:     recorder,
		notifier:     notifier,
		now:          time.Now,
		tracer:       otel.Tracer("github.com/Locquiano101/CnscCodexMain-sub000/internal/submission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit 创建或覆盖提交，状态重置为 Pending
func (s *Service) Submit(ctx context.Context, key string, in SubmitInput) (*Submission, error) {
	ctx, span := s.tracer.Start(ctx, "SubmissionService.Submit")
	defer span.End()

	org := strings.TrimSpace(in.OrganizationProfile)
	span.SetAttributes(attribute.String("requirement.key", key), attribute.String("organization", org))

	actor, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, &common.AppError{Kind: common.ErrUnauthorized, Message: "Authentication required"}
	}
	if org == "" {
		return nil, common.Validation("organizationProfile is required")
	}

	req, err := s.requirements.GetByKey(ctx, key)
	if err != nil {
		return nil, s.fail(span, err, "load requirement failed")
	}

	mimeType, err := s.policy.Inspect(in.File)
	if err != nil {
		return nil, err
	}
	doc, err := s.files.Save(ctx, in.File, mimeType)
	if err != nil {
		return nil, s.fail(span, err, "store file failed")
	}

	line := LogLine(s.now(), actor.Role, submitDescription, "")

	sub, previousRef, err := s.upsert(ctx, key, org, func(sub *Submission) {
		sub.Document = *doc
		sub.Status = StatusPending
		sub.UploadedBy = actor.ID
		sub.Orphaned = false
		sub.appendLog(line)
	})
	if err != nil {
		s.discardFile(ctx, doc.Ref)
		return nil, s.fail(span, err, "save submission failed")
	}
	if previousRef != "" && previousRef != doc.Ref {
		s.discardFile(ctx, previousRef)
	}

	metrics.SubmissionTransitionsTotal.WithLabelValues(string(ActionSubmit), string(StatusPending)).Inc()

	s.recorder.Record(ctx, audit.Entry{
		Action:       audit.EventSubmissionSubmit,
		TargetType:   audit.TargetSubmission,
		TargetID:     sub.ID,
		Organization: org,
		Meta: map[string]any{
			"requirementKey": key,
			"status":         string(StatusPending),
			"document":       doc.Ref,
		},
	})
	s.notifier.Dispatch(ctx, notification.Message{
		Organization: org,
		Subject:      fmt.Sprintf("%s submitted", req.Title),
		Body:         line,
	})

	logger.WithContext(ctx).Info("需求已提交",
		zap.String("requirement", key),
		zap.String("organization", org),
		zap.String("submission_id", sub.ID),
	)
	return sub, nil
}

// upsert 先按 (需求, 组织) 查找；首次创建遇到唯一索引冲突时回退到更新一次
func (s *Service) upsert(ctx context.Context, key, org string, apply func(*Submission)) (*Submission, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.repo.GetByPair(ctx, key, org)
		switch {
		case err == nil:
			previousRef := existing.Document.Ref
			apply(existing)
			if err := s.repo.Save(ctx, existing); err != nil {
				return nil, "", err
			}
			return existing, previousRef, nil
		case errors.Is(err, common.ErrNotFound):
			sub := &Submission{RequirementKey: key, OrganizationProfile: org}
			apply(sub)
			err := s.repo.Create(ctx, sub)
			if err == nil {
				return sub, "", nil
			}
			if !errors.Is(err, common.ErrConflict) {
				return nil, "", err
			}
		default:
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("提交并发冲突: %s/%s", key, org)
}

// Transition 按目标状态执行审核动作
func (s *Service) Transition(ctx context.Context, key, submissionID string, in TransitionInput) (*Submission, error) {
	ctx, span := s.tracer.Start(ctx, "SubmissionService.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("requirement.key", key),
		attribute.String("submission.id", submissionID),
		attribute.String("submission.target", in.Status),
	)

	actor, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, &common.AppError{Kind: common.ErrUnauthorized, Message: "Authentication required"}
	}

	action, err := ActionForStatus(in.Status)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, s.fail(span, err, "load submission failed")
	}
	if sub.RequirementKey != key {
		return nil, common.NotFound("Submission not found")
	}
	if sub.Orphaned {
		return nil, common.NotFound("Requirement no longer exists")
	}
	req, err := s.requirements.GetByKey(ctx, key)
	if err != nil {
		return nil, s.fail(span, err, "load requirement failed")
	}

	decision, err := Decide(sub.Status, action, actor.Role, in.Notes)
	if err != nil {
		return nil, err
	}

	line := LogLine(s.now(), actor.Role, decision.Description, decision.Notes)
	sub.Status = decision.To
	sub.appendLog(line)

	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, s.fail(span, err, "save submission failed")
	}

	metrics.SubmissionTransitionsTotal.WithLabelValues(string(decision.Action), string(decision.To)).Inc()

	meta := map[string]any{
		"requirementKey": key,
		"action":         string(decision.Action),
		"from":           string(decision.From),
		"to":             string(decision.To),
	}
	if decision.Notes != "" {
		meta["notes"] = decision.Notes
	}
	s.recorder.Record(ctx, audit.Entry{
		Action:       audit.EventSubmissionStatus,
		TargetType:   audit.TargetSubmission,
		TargetID:     sub.ID,
		Organization: sub.OrganizationProfile,
		Meta:         meta,
	})
	s.notifier.Dispatch(ctx, notification.Message{
		Organization: sub.OrganizationProfile,
		Subject:      fmt.Sprintf("%s: %s", req.Title, decision.To),
		Body:         line,
	})

	logger.WithContext(ctx).Info("提交状态变更",
		zap.String("submission_id", sub.ID),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.To)),
		zap.String("role", string(actor.Role)),
	)
	return sub, nil
}

// Get 查询组织在某需求下的提交（不受门控影响）
func (s *Service) Get(ctx context.Context, key, org string) (*Submission, error) {
	return s.repo.GetByPair(ctx, key, org)
}

// List 审核端列出某需求下的提交
func (s *Service) List(ctx context.Context, key string, q ListQuery) ([]Submission, int64, error) {
	return s.repo.ListByRequirement(ctx, key, q.Status, q.PaginationRequest)
}

func (s *Service) discardFile(ctx context.Context, ref string) {
	if err := s.files.Delete(ctx, ref); err != nil {
		logger.WithContext(ctx).Warn("清理提交附件失败", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
	}
	return err
}
