package authz

import (
	"fmt"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// RoleSeed 内置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 内置角色矩阵：auditor 只读审计日志，operator 额外可重放与触发扫描
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.OperatorRoleAuditor,
			Policies: []Policy{
				{Object: "/ops/me", Action: "GET"},
				{Object: "/ops/roles", Action: "GET"},
				{Object: "/ops/permissions/catalog", Action: "GET"},
				{Object: "/ops/webhook-events", Action: "GET"},
				{Object: "/ops/webhook-events/stats", Action: "GET"},
				{Object: "/ops/webhook-events/:id", Action: "GET"},
			},
		},
		{
			Role:     constants.OperatorRoleOperator,
			Inherits: []string{constants.OperatorRoleAuditor},
			Policies: []Policy{
				{Object: "/ops/webhook-events/:id/replay", Action: "POST"},
				{Object: "/ops/reminders/sweep", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 同步内置角色，可重复执行
// 已持久化但不在矩阵中的内置角色直连策略会被撤销
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	for _, seed := range BuiltinRoleSeeds() {
		if err := s.syncSeed(seed); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) syncSeed(seed RoleSeed) error {
	role, err := NormalizeRole(seed.Role)
	if err != nil {
		return err
	}

	for _, parent := range seed.Inherits {
		parentRole, err := NormalizeRole(parent)
		if err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
			return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
		}
	}

	wanted := make(map[[2]string]struct{}, len(seed.Policies))
	for _, policy := range seed.Policies {
		object, action := NormalizeObject(policy.Object), NormalizeAction(policy.Action)
		if action == "" {
			return fmt.Errorf("builtin policy action is required")
		}
		wanted[[2]string{object, action}] = struct{}{}
		if _, err := s.enforcer.AddPolicy(role, object, action); err != nil {
			return fmt.Errorf("add builtin policy failed: %w", err)
		}
	}

	existing, err := s.GetRolePolicies(role)
	if err != nil {
		return err
	}
	for _, policy := range existing {
		if _, ok := wanted[[2]string{policy.Object, policy.Action}]; ok {
			continue
		}
		if _, err := s.enforcer.RemovePolicy(role, policy.Object, policy.Action); err != nil {
			return fmt.Errorf("revoke stale policy failed: %w", err)
		}
	}
	return nil
}
