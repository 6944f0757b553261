package requirement

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/audit"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/storage"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Requirement{}))
	return db
}

type memoryFiles struct {
	mu        sync.Mutex
	saved     map[string]bool
	deleted   []string
	deleteErr error
}

func (m *memoryFiles) Save(ctx context.Context, u *storage.Upload, mimeType string) (*storage.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]bool{}
	}
	ref := uuid.NewString()
	m.saved[ref] = true
	return &storage.Document{Ref: ref, OriginalName: u.Name, MimeType: mimeType, Size: u.Size}, nil
}

func (m *memoryFiles) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return m.deleteErr
}

type countingCache struct {
	calls int
	err   error
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.calls++
	return c.err
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Record(ctx context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAudit) actions() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type stubOrphaner struct {
	keys    []string
	n       int64
	revived []string
	revive  int64
}

func (o *stubOrphaner) OrphanByRequirement(ctx context.Context, key string) (int64, error) {
	o.keys = append(o.keys, key)
	return o.n, nil
}

func (o *stubOrphaner) ReviveByRequirement(ctx context.Context, key string) (int64, error) {
	o.revived = append(o.revived, key)
	return o.revive, nil
}

type fixture struct {
	svc      *Service
	repo     *Repository
	files    *memoryFiles
	cache    *countingCache
	audit    *recordingAudit
	orphaner *stubOrphaner
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	repo := NewRepository(openTestDB(t))
	f := &fixture{
		repo:     repo,
		files:    &memoryFiles{},
		cache:    &countingCache{},
		audit:    &recordingAudit{},
		orphaner: &stubOrphaner{n: 2},
		ctx: auth.WithPrincipal(context.Background(), &auth.Principal{
			ID: "admin-1", Name: "Coordinator", Role: auth.RoleAdmin,
		}),
	}
	f.svc = NewService(repo, f.files, storage.NewPolicy(1024), f.cache, f.audit, WithOrphaner(f.orphaner))
	return f
}

func pdfUpload(name string) *storage.Upload {
	content := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	return &storage.Upload{Name: name, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func ptr(s string) *string { return &s }

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Financial Report":          "financial-report",
		"  Action -- Plan 2024!! ":  "action-plan-2024",
		"Constitution & By-Laws":    "constitution-by-laws",
		"***":                       "",
		"Ünïcode Title":             "n-code-title",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCreateCustom(t *testing.T) {
	f := newFixture(t)

	t.Run("创建成功并刷新缓存", func(t *testing.T) {
		req, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "  Financial Report ", Description: "Q1"})
		require.NoError(t, err)
		assert.Equal(t, "financial-report", req.Key)
		assert.Equal(t, "Financial Report", req.Title)
		assert.Equal(t, TypeCustom, req.Type)
		assert.True(t, req.Enabled)
		assert.True(t, req.Removable)
		assert.Equal(t, 1, req.Version)
		assert.Equal(t, "admin-1", req.CreatedBy)
		assert.Equal(t, 1, f.cache.calls)
		assert.Equal(t, []audit.EventType{audit.EventRequirementCreate}, f.audit.actions())
	})

	t.Run("相似标题冲突", func(t *testing.T) {
		_, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "financial   report!"})
		require.ErrorIs(t, err, common.ErrConflict)
		assert.Contains(t, err.Error(), "Another requirement with similar title exists")
	})

	t.Run("标题为空", func(t *testing.T) {
		_, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "   "})
		require.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("标题只有符号", func(t *testing.T) {
		_, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "!!!"})
		require.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("带附件时记录两条审计", func(t *testing.T) {
		before := len(f.audit.actions())
		req, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Action Plan", File: pdfUpload("plan.pdf")})
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", req.Document.MimeType)
		assert.Equal(t, "plan.pdf", req.Document.OriginalName)
		assert.Equal(t, []audit.EventType{audit.EventRequirementCreate, audit.EventDocumentUpload}, f.audit.actions()[before:])
	})

	t.Run("附件过大", func(t *testing.T) {
		big := pdfUpload("big.pdf")
		big.Size = 4096
		_, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Big File", File: big})
		require.ErrorIs(t, err, common.ErrPayloadTooLarge)
	})

	t.Run("附件类型不支持", func(t *testing.T) {
		content := []byte("just some plain text")
		_, err := f.svc.CreateCustom(f.ctx, CreateInput{
			Title: "Text File",
			File:  &storage.Upload{Name: "a.txt", Size: int64(len(content)), Content: bytes.NewReader(content)},
		})
		require.ErrorIs(t, err, common.ErrUnsupportedMediaType)

		_, err = f.repo.GetByKey(f.ctx, "text-file")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Roster", File: pdfUpload("v1.pdf")})
	require.NoError(t, err)
	_, err = f.svc.CreateCustom(f.ctx, CreateInput{Title: "Budget"})
	require.NoError(t, err)
	firstRef := req.Document.Ref

	t.Run("改名不改 key", func(t *testing.T) {
		updated, err := f.svc.Update(f.ctx, req.ID, UpdateInput{Title: ptr("Roster of Officers")})
		require.NoError(t, err)
		assert.Equal(t, "roster", updated.Key)
		assert.Equal(t, "Roster of Officers", updated.Title)

		last := f.audit.entries[len(f.audit.entries)-1]
		assert.Equal(t, audit.EventRequirementUpdate, last.Action)
		assert.Equal(t, []string{"title"}, last.Meta["changed"])
	})

	t.Run("新标题与其他需求冲突", func(t *testing.T) {
		_, err := f.svc.Update(f.ctx, req.ID, UpdateInput{Title: ptr("BUDGET")})
		require.ErrorIs(t, err, common.ErrConflict)
	})

	t.Run("替换附件递增版本", func(t *testing.T) {
		updated, err := f.svc.Update(f.ctx, req.ID, UpdateInput{File: pdfUpload("v2.pdf")})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.NotEqual(t, firstRef, updated.Document.Ref)
		assert.Contains(t, f.files.deleted, firstRef)

		actions := f.audit.actions()
		assert.Equal(t, []audit.EventType{audit.EventRequirementUpdate, audit.EventDocumentUpload}, actions[len(actions)-2:])
	})

	t.Run("不存在", func(t *testing.T) {
		_, err := f.svc.Update(f.ctx, "missing", UpdateInput{Title: ptr("x")})
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Pledge"})
	require.NoError(t, err)
	calls := f.cache.calls

	toggled, err := f.svc.Toggle(f.ctx, req.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)
	assert.Equal(t, calls+1, f.cache.calls)

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, audit.EventRequirementToggle, last.Action)
	assert.Equal(t, true, last.Meta["previous"])
	assert.Equal(t, false, last.Meta["enabled"])

	keys, err := f.svc.EnabledKeys(f.ctx)
	require.NoError(t, err)
	assert.NotContains(t, keys, "pledge")

	t.Run("缓存刷新失败不影响结果", func(t *testing.T) {
		f.cache.err = errors.New("db timeout")
		_, err := f.svc.Toggle(f.ctx, req.ID, true)
		require.NoError(t, err)
		f.cache.err = nil
	})

	t.Run("不存在", func(t *testing.T) {
		_, err := f.svc.Toggle(f.ctx, "missing", true)
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SeedTemplates(f.ctx, []Template{{Key: "roster", Title: "Roster of Members"}})
	require.NoError(t, err)

	t.Run("模板不可删除", func(t *testing.T) {
		tmpl, err := f.repo.GetByKey(f.ctx, "roster")
		require.NoError(t, err)
		_, err = f.svc.Delete(f.ctx, tmpl.ID)
		require.ErrorIs(t, err, common.ErrValidation)
		assert.Contains(t, err.Error(), "Only removable custom requirements can be deleted")
	})

	t.Run("删除自定义需求并标记提交", func(t *testing.T) {
		req, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Outreach Plan", File: pdfUpload("p.pdf")})
		require.NoError(t, err)

		result, err := f.svc.Delete(f.ctx, req.ID)
		require.NoError(t, err)
		assert.True(t, result.Cleaned)
		assert.Equal(t, int64(2), result.OrphanedSubmissions)
		assert.Equal(t, []string{"outreach-plan"}, f.orphaner.keys)

		_, err = f.repo.GetByID(f.ctx, req.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)

		last := f.audit.entries[len(f.audit.entries)-1]
		assert.Equal(t, audit.EventRequirementDelete, last.Action)
		assert.Equal(t, true, last.Meta["cleaned"])
	})

	t.Run("同标题重新创建时恢复孤立提交", func(t *testing.T) {
		f.orphaner.revive = 2
		t.Cleanup(func() { f.orphaner.revive = 0 })

		req, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Outreach Plan"})
		require.NoError(t, err)
		assert.Equal(t, "outreach-plan", req.Key)
		assert.Contains(t, f.orphaner.revived, "outreach-plan")

		last := f.audit.entries[len(f.audit.entries)-1]
		assert.Equal(t, audit.EventRequirementCreate, last.Action)
		assert.Equal(t, int64(2), last.Meta["revivedSubmissions"])
	})

	t.Run("附件清理失败不中止删除", func(t *testing.T) {
		req, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Survey", File: pdfUpload("s.pdf")})
		require.NoError(t, err)
		f.files.deleteErr = errors.New("permission denied")

		result, err := f.svc.Delete(f.ctx, req.ID)
		require.NoError(t, err)
		assert.False(t, result.Cleaned)
		f.files.deleteErr = nil
	})

	t.Run("不存在", func(t *testing.T) {
		_, err := f.svc.Delete(f.ctx, "missing")
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestListing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SeedTemplates(f.ctx, []Template{
		{Key: "roster", Title: "Roster of Members"},
		{Key: "action-plan", Title: "Action Plan"},
	})
	require.NoError(t, err)
	custom, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Alumni Letter"})
	require.NoError(t, err)
	hidden, err := f.svc.CreateCustom(f.ctx, CreateInput{Title: "Hidden"})
	require.NoError(t, err)
	_, err = f.svc.Toggle(f.ctx, hidden.ID, false)
	require.NoError(t, err)

	t.Run("公开列表只含启用项并排序", func(t *testing.T) {
		visible, err := f.svc.ListVisible(f.ctx)
		require.NoError(t, err)
		require.Len(t, visible, 3)
		assert.Equal(t, custom.Key, visible[0].Key)
		assert.Equal(t, "action-plan", visible[1].Key)
		assert.Equal(t, "roster", visible[2].Key)
	})

	t.Run("管理端按类型过滤", func(t *testing.T) {
		all, err := f.svc.ListAll(f.ctx, Filter{Type: TypeCustom, IncludeDisabled: true})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		enabledOnly, err := f.svc.ListAll(f.ctx, Filter{Type: TypeCustom})
		require.NoError(t, err)
		assert.Len(t, enabledOnly, 1)
	})

	t.Run("按 key 查询", func(t *testing.T) {
		_, err := f.svc.GetByKey(f.ctx, "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestSeedTemplates(t *testing.T) {
	f := newFixture(t)
	templates, err := DefaultTemplates()
	require.NoError(t, err)
	require.NotEmpty(t, templates)

	inserted, err := f.svc.SeedTemplates(f.ctx, templates)
	require.NoError(t, err)
	assert.Equal(t, len(templates), inserted)

	t.Run("重复执行不修改已有记录", func(t *testing.T) {
		existing, err := f.repo.GetByKey(f.ctx, templates[0].Key)
		require.NoError(t, err)
		_, err = f.svc.Toggle(f.ctx, existing.ID, false)
		require.NoError(t, err)

		inserted, err := f.svc.SeedTemplates(f.ctx, templates)
		require.NoError(t, err)
		assert.Zero(t, inserted)

		again, err := f.repo.GetByKey(f.ctx, templates[0].Key)
		require.NoError(t, err)
		assert.False(t, again.Enabled)
		assert.False(t, again.Removable)
		assert.Equal(t, TypeTemplate, again.Type)
	})
}
