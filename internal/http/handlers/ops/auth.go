package ops

import (
	"errors"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/authz"
	"github.com/Performile1/Performile-Version-1-sub001/internal/http/response"
	"github.com/Performile1/Performile-Version-1-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 运维登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 运维登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "username and password are required", nil)
		return
	}

	operator, token, expiresAt, err := h.AuthService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrOperatorInvalid) {
			requestLog(c).Warnw("ops_login_rejected", "username", req.Username)
			respondError(c, response.CodeUnauthorized, "invalid username or password", nil)
			return
		}
		respondError(c, response.CodeInternal, "login failed", err)
		return
	}

	requestLog(c).Infow("ops_login_succeeded", "operator_id", operator.ID, "role", operator.Role)
	response.Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"operator": gin.H{
			"id":       operator.ID,
			"username": operator.Username,
			"role":     operator.Role,
		},
	})
}

// Me 当前运维账号
func (h *Handler) Me(c *gin.Context) {
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}
	response.Success(c, gin.H{
		"id":       operatorID,
		"username": c.GetString(ContextUsername),
		"role":     c.GetString(ContextRole),
	})
}

// ListRoles 列出角色、继承关系及直连策略
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "list roles failed", err)
		return
	}
	items := make([]*authz.RoleView, 0, len(roles))
	for _, role := range roles {
		view, err := h.AuthzService.DescribeRole(role)
		if err != nil {
			respondError(c, response.CodeInternal, "describe role failed", err)
			return
		}
		items = append(items, view)
	}
	response.Success(c, items)
}
