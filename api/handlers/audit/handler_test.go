package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/audit"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seededRepository(t *testing.T) *audit.Repository {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&audit.AuditLog{}))

	repo := audit.NewRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, action := range []string{"requirement.create", "requirement.toggle", "submission.status"} {
		require.NoError(t, repo.Create(ctx, &audit.AuditLog{
			Action:     action,
			Category:   "registry",
			TargetType: "requirement",
			TargetID:   "req-1",
			ActorID:    "admin-1",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return repo
}

type failingReader struct{}

func (failingReader) List(ctx context.Context, q audit.Query) ([]audit.AuditLog, int64, error) {
	return nil, 0, errors.New("db down")
}

func TestListAuditLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/audit-logs", NewHandler(seededRepository(t)).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs?action=requirement.toggle", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items []struct {
			Action string `json:"action"`
		} `json:"items"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "requirement.toggle", resp.Items[0].Action)
	assert.Equal(t, int64(1), resp.Pagination.Total)

	t.Run("分页", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs?page=2&pageSize=2", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Items, 1)
		assert.Equal(t, int64(3), resp.Pagination.Total)
	})

	t.Run("非法分页参数", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs?page=abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("读取失败", func(t *testing.T) {
		r := gin.New()
		r.GET("/audit-logs", NewHandler(failingReader{}).List)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit-logs", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
