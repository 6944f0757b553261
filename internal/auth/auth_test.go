package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"admin":          RoleAdmin,
		"SDU":            RoleAdmin,
		" Administrator": RoleAdmin,
		"Advisor":        RoleAdviser,
		"adviser":        RoleAdviser,
		"DEAN":           RoleDean,
		"student_leader": RoleStudentLeader,
		"Student Leader": RoleStudentLeader,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			got, ok := ParseRole(raw)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}

	t.Run("未知角色", func(t *testing.T) {
		_, ok := ParseRole("janitor")
		assert.False(t, ok)
	})

	t.Run("审核角色", func(t *testing.T) {
		assert.True(t, RoleDean.IsReviewer())
		assert.False(t, RoleStudentLeader.IsReviewer())
	})
}

func TestJWTService(t *testing.T) {
	svc := NewJWTService("secret", "accreditation", time.Hour)
	token, err := svc.GenerateToken(Principal{ID: "u-1", Name: "Ana", Email: "ana@example.edu", Role: RoleAdviser})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.ID)
	assert.Equal(t, RoleAdviser, p.Role)

	t.Run("密钥不匹配", func(t *testing.T) {
		other := NewJWTService("other", "accreditation", time.Hour)
		_, err := other.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("签发者不匹配", func(t *testing.T) {
		other := NewJWTService("secret", "someone-else", time.Hour)
		_, err := other.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("令牌过期", func(t *testing.T) {
		short := NewJWTService("secret", "accreditation", time.Nanosecond)
		short.expiry = -time.Hour
		expired, err := short.GenerateToken(Principal{ID: "u-1", Role: RoleAdmin})
		require.NoError(t, err)
		_, err = svc.ValidateToken(expired)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("bearer  abc "))
	assert.Empty(t, ExtractTokenFromBearer("Basic abc"))
	assert.Empty(t, ExtractTokenFromBearer("abc"))
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewJWTService("secret", "accreditation", time.Hour)

	newRouter := func() *gin.Engine {
		r := gin.New()
		r.GET("/admin", AuthMiddleware(svc), RequireRole(RoleAdmin), func(c *gin.Context) {
			p, _ := GetPrincipal(c)
			fromCtx, ok := PrincipalFromContext(c.Request.Context())
			assert.True(t, ok)
			assert.Equal(t, p.ID, fromCtx.ID)
			c.Status(http.StatusOK)
		})
		return r
	}

	do := func(token string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		newRouter().ServeHTTP(w, req)
		return w.Code
	}

	adminToken, err := svc.GenerateToken(Principal{ID: "a-1", Role: RoleAdmin})
	require.NoError(t, err)
	deanToken, err := svc.GenerateToken(Principal{ID: "d-1", Role: RoleDean})
	require.NoError(t, err)

	t.Run("缺少令牌", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(""))
	})
	t.Run("无效令牌", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("garbage"))
	})
	t.Run("角色不足", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(deanToken))
	})
	t.Run("管理员通过", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(adminToken))
	})
}
