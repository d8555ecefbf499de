package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
)

// ErrUnavailable 授权服务未初始化
var ErrUnavailable = errors.New("authz service unavailable")

// 角色继承走 g，资源路径按 keyMatch2 匹配（支持 :id 占位）
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// Policy 一条授权策略，Object 不含 /api/v1 前缀
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// RoleView 角色及其继承关系与直连策略
type RoleView struct {
	Role     string   `json:"role"`
	Inherits []string `json:"inherits"`
	Policies []Policy `json:"policies"`
}

// Service 运维接口的 RBAC 判定，策略持久化在 casbin_rule 表
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务并加载已持久化的策略
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

// EnforceRole 判定运维角色能否以 act 访问 obj
func (s *Service) EnforceRole(role, obj, act string) (bool, error) {
	subject, err := NormalizeRole(role)
	if err != nil {
		return false, err
	}
	if s == nil || s.enforcer == nil {
		return false, ErrUnavailable
	}
	return s.enforcer.Enforce(subject, NormalizeObject(obj), NormalizeAction(act))
}

// ListRoles 列出出现在策略或继承关系中的全部角色
func (s *Service) ListRoles() ([]string, error) {
	if s == nil || s.enforcer == nil {
		return nil, ErrUnavailable
	}
	set := make(map[string]struct{})
	policies, err := s.enforcer.GetFilteredPolicy(0)
	if err != nil {
		return nil, fmt.Errorf("list policies failed: %w", err)
	}
	for _, rule := range policies {
		if len(rule) > 0 && strings.HasPrefix(rule[0], rolePrefix) {
			set[rule[0]] = struct{}{}
		}
	}
	links, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0)
	if err != nil {
		return nil, fmt.Errorf("list role links failed: %w", err)
	}
	for _, link := range links {
		for _, role := range link {
			if strings.HasPrefix(role, rolePrefix) {
				set[role] = struct{}{}
			}
		}
	}
	roles := make([]string, 0, len(set))
	for role := range set {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// DescribeRole 返回角色的直接父角色与直连策略
func (s *Service) DescribeRole(role string) (*RoleView, error) {
	subject, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if s == nil || s.enforcer == nil {
		return nil, ErrUnavailable
	}
	links, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0, subject)
	if err != nil {
		return nil, fmt.Errorf("get role links failed: %w", err)
	}
	policies, err := s.GetRolePolicies(subject)
	if err != nil {
		return nil, err
	}
	view := &RoleView{Role: subject, Inherits: []string{}, Policies: policies}
	for _, link := range links {
		if len(link) >= 2 {
			view.Inherits = append(view.Inherits, link[1])
		}
	}
	sort.Strings(view.Inherits)
	return view, nil
}

// GetRolePolicies 角色的直连策略，不含继承所得
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	subject, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if s == nil || s.enforcer == nil {
		return nil, ErrUnavailable
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, subject)
	if err != nil {
		return nil, fmt.Errorf("get role policies failed: %w", err)
	}
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{Subject: rule[0], Object: rule[1], Action: rule[2]})
	}
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Object == policies[j].Object {
			return policies[i].Action < policies[j].Action
		}
		return policies[i].Object < policies[j].Object
	})
	return policies, nil
}

// NormalizeRole 角色统一为小写并带 role: 前缀
func NormalizeRole(role string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(role))
	name = strings.TrimPrefix(name, rolePrefix)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "", fmt.Errorf("role is required")
	}
	return rolePrefix + name, nil
}

// NormalizeObject 去掉 /api/v1 前缀，保证以 / 开头
func NormalizeObject(object string) string {
	path := strings.TrimSpace(object)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	switch {
	case path == apiV1Prefix:
		return "/"
	case strings.HasPrefix(path, apiV1Prefix+"/"):
		return strings.TrimPrefix(path, apiV1Prefix)
	}
	return path
}

// NormalizeAction HTTP 方法统一为大写
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
