package requirement

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template 内置需求模板
type Template struct {
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// DefaultTemplates 解析内置模板目录
func DefaultTemplates() ([]Template, error) {
	var catalog struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(templatesYAML, &catalog); err != nil {
		return nil, fmt.Errorf("解析模板目录失败: %w", err)
	}
	for i, t := range catalog.Templates {
		if t.Key == "" {
			catalog.Templates[i].Key = Slugify(t.Title)
		}
	}
	return catalog.Templates, nil
}

// SeedTemplates 补齐缺失的模板需求，已存在的 key 不做任何修改
func (s *Service) SeedTemplates(ctx context.Context, templates []Template) (int, error) {
	inserted := 0
	for _, t := range templates {
		if t.Key == "" || t.Title == "" {
			return inserted, fmt.Errorf("模板缺少 key 或标题: %+v", t)
		}
		ok, err := s.repo.CreateIfMissing(ctx, &Requirement{
			Key:         t.Key,
			Type:        TypeTemplate,
			Title:       t.Title,
			Description: t.Description,
			Enabled:     true,
			Removable:   false,
			Version:     1,
			CreatedBy:   "system",
		})
		if err != nil {
			return inserted, fmt.Errorf("写入模板 %s 失败: %w", t.Key, err)
		}
		if ok {
			inserted++
		}
	}

	if inserted > 0 {
		s.invalidate(ctx)
		logger.Info("模板需求已补齐", zap.Int("inserted", inserted), zap.Int("total", len(templates)))
	}
	return inserted, nil
}
