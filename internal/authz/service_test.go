package authz

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestNormalizeHelpers(t *testing.T) {
	objects := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/ops/webhook-events/:id", want: "/ops/webhook-events/:id"},
		{in: "/ops/webhook-events/:id", want: "/ops/webhook-events/:id"},
		{in: "ops/webhook-events", want: "/ops/webhook-events"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range objects {
		if got := NormalizeObject(item.in); got != item.want {
			t.Fatalf("normalize object in=%q want=%q got=%q", item.in, item.want, got)
		}
	}

	for in, want := range map[string]string{"auditor": "role:auditor", " Operator ": "role:operator", "role:auditor": "role:auditor"} {
		got, err := NormalizeRole(in)
		if err != nil || got != want {
			t.Fatalf("normalize role %q want %s got %s err=%v", in, want, got, err)
		}
	}
	if _, err := NormalizeRole("  "); err == nil {
		t.Fatalf("empty role should be rejected")
	}
	if _, err := NormalizeRole("role:"); err == nil {
		t.Fatalf("bare prefix should be rejected")
	}
	if got := NormalizeAction(" post "); got != "POST" {
		t.Fatalf("normalize action got %s", got)
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	// 重复执行不应报错
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	if len(roles) != 2 || roles[0] != "role:auditor" || roles[1] != "role:operator" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	cases := []struct {
		role   string
		object string
		action string
		want   bool
	}{
		{role: "auditor", object: "/api/v1/ops/webhook-events", action: "GET", want: true},
		{role: "auditor", object: "/api/v1/ops/webhook-events/7", action: "get", want: true},
		{role: "auditor", object: "/api/v1/ops/webhook-events/7/replay", action: "POST", want: false},
		{role: "auditor", object: "/api/v1/ops/reminders/sweep", action: "POST", want: false},
		{role: "operator", object: "/api/v1/ops/webhook-events/7", action: "GET", want: true},
		{role: "operator", object: "/api/v1/ops/webhook-events/7/replay", action: "POST", want: true},
		{role: "operator", object: "/api/v1/ops/reminders/sweep", action: "POST", want: true},
		{role: "operator", object: "/api/v1/ops/webhook-events/7", action: "DELETE", want: false},
		{role: "stranger", object: "/api/v1/ops/me", action: "GET", want: false},
	}
	for _, tc := range cases {
		allow, err := svc.EnforceRole(tc.role, tc.object, tc.action)
		if err != nil {
			t.Fatalf("enforce %s %s %s failed: %v", tc.role, tc.action, tc.object, err)
		}
		if allow != tc.want {
			t.Fatalf("enforce %s %s %s want %v got %v", tc.role, tc.action, tc.object, tc.want, allow)
		}
	}
	if _, err := svc.EnforceRole("  ", "/ops/webhook-events", "GET"); err == nil {
		t.Fatalf("expected empty role to be rejected")
	}

	view, err := svc.DescribeRole("operator")
	if err != nil {
		t.Fatalf("describe role failed: %v", err)
	}
	if len(view.Inherits) != 1 || view.Inherits[0] != "role:auditor" {
		t.Fatalf("operator should inherit auditor: %+v", view.Inherits)
	}
	if len(view.Policies) != 2 || view.Policies[0].Object != "/ops/reminders/sweep" {
		t.Fatalf("unexpected operator direct policies: %+v", view.Policies)
	}
}

func TestBootstrapRevokesStaleBuiltinPolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.enforcer.AddPolicy("role:auditor", "/ops/webhook-events/:id/replay", "POST"); err != nil {
		t.Fatalf("seed stale policy failed: %v", err)
	}
	allow, _ := svc.EnforceRole("auditor", "/api/v1/ops/webhook-events/1/replay", "POST")
	if !allow {
		t.Fatalf("stale policy should be effective before bootstrap")
	}

	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	allow, err := svc.EnforceRole("auditor", "/api/v1/ops/webhook-events/1/replay", "POST")
	if err != nil || allow {
		t.Fatalf("stale policy should be revoked, allow=%v err=%v", allow, err)
	}
}

func TestNilServiceUnavailable(t *testing.T) {
	var svc *Service
	if _, err := svc.EnforceRole("auditor", "/ops/me", "GET"); err != ErrUnavailable {
		t.Fatalf("nil service want ErrUnavailable got %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != ErrUnavailable {
		t.Fatalf("nil bootstrap want ErrUnavailable got %v", err)
	}
}
