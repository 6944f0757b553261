package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenExpiry = 8 * time.Hour
	clockSkew          = 30 * time.Second
)

// JWTService 校验会话令牌；签发仅供命令行工具和测试使用
type JWTService struct {
	secret []byte
	issuer string
	expiry time.Duration
	parser *jwt.Parser
}

func NewJWTService(secret, issuer string, expiry time.Duration) *JWTService {
	if expiry <= 0 {
		expiry = defaultTokenExpiry
	}
	return &JWTService{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(clockSkew),
			jwt.WithExpirationRequired(),
		),
	}
}

// TokenClaims 令牌载荷，角色以字符串保存
type TokenClaims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (s *JWTService) GenerateToken(p Principal) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID: p.ID,
		Name:   p.Name,
		Email:  p.Email,
		Role:   string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("签名令牌失败: %w", err)
	}
	return signed, nil
}

// ValidateToken 校验签名、签发方和有效期
func (s *JWTService) ValidateToken(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("令牌已过期: %w", err)
	case err != nil:
		return nil, fmt.Errorf("解析令牌失败: %w", err)
	}
	return claims, nil
}

// Principal 角色无法识别时返回错误
func (c *TokenClaims) Principal() (*Principal, error) {
	role, ok := ParseRole(c.Role)
	if !ok {
		return nil, fmt.Errorf("未知角色: %q", c.Role)
	}
	return &Principal{ID: c.UserID, Name: c.Name, Email: c.Email, Role: role}, nil
}

// ExtractTokenFromBearer 取出 Authorization 头中的令牌，scheme 不区分大小写
func ExtractTokenFromBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
