package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	appcommon "github.com/Locquiano101/CnscCodexMain-sub000/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(fn func(c *gin.Context)) (*httptest.ResponseRecorder, ErrorResponse) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestError(t *testing.T) {
	t.Run("业务错误透出消息", func(t *testing.T) {
		err := fmt.Errorf("创建失败: %w", appcommon.Conflict("Another requirement with similar title exists"))
		w, body := render(func(c *gin.Context) { Error(c, err) })

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.False(t, body.Success)
		assert.Equal(t, appcommon.CodeConflict, body.Code)
		assert.Equal(t, "Another requirement with similar title exists", body.Message)
	})

	t.Run("内部错误不暴露细节", func(t *testing.T) {
		w, body := render(func(c *gin.Context) { Error(c, errors.New("pq: connection reset")) })

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", body.Message)
		assert.NotContains(t, w.Body.String(), "pq:")
	})
}

func TestList(t *testing.T) {
	w, _ := render(func(c *gin.Context) {
		List(c, []string{"a", "b"}, appcommon.PaginationRequest{Page: 1, PageSize: 2}, 5)
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
}
