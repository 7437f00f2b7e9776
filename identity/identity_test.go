package identity_test

import (
	"errors"
	"testing"

	"github.com/warp/eod-reports/identity"
)

var (
	emp      = identity.Employee{ID: "emp-1", ManagerID: "mgr-1", Name: "Emp", Active: true}
	peer     = identity.Employee{ID: "emp-2", ManagerID: "mgr-1", Name: "Peer", Active: true}
	mgr      = identity.Manager{ID: "mgr-1", Name: "Mgr", Active: true}
	otherMgr = identity.Manager{ID: "mgr-2", Name: "Other", Active: true}
	admin    = identity.Admin{ID: "adm-1", Name: "Admin", Active: true}
)

func TestCanViewReport_Matrix(t *testing.T) {
	cases := []struct {
		name    string
		actor   identity.Identity
		allowed bool
	}{
		{"owner views own", emp, true},
		{"peer views another's", peer, false},
		{"direct manager views", mgr, true},
		{"other manager denied", otherMgr, false},
		{"admin views anything", admin, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := identity.CanViewReport(tc.actor, emp.ID, emp.ManagerID)
			if tc.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, identity.ErrForbidden) {
				t.Errorf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestCanReviewReport_Matrix(t *testing.T) {
	cases := []struct {
		name    string
		actor   identity.Identity
		allowed bool
	}{
		{"owner never reviews own", emp, false},
		{"peer never reviews", peer, false},
		{"direct manager reviews", mgr, true},
		{"other manager denied", otherMgr, false},
		{"admin reviews anyone", admin, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := identity.CanReviewReport(tc.actor, emp)
			if tc.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, identity.ErrForbidden) {
				t.Errorf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestViewScopeFor(t *testing.T) {
	if identity.ViewScopeFor(emp) != identity.ScopeOwn {
		t.Error("employee scope should be own")
	}
	if identity.ViewScopeFor(mgr) != identity.ScopeTeam {
		t.Error("manager scope should be team")
	}
	if identity.ViewScopeFor(admin) != identity.ScopeAll {
		t.Error("admin scope should be all")
	}
}

func TestRoleVariants(t *testing.T) {
	if emp.Role() != identity.RoleEmployee || mgr.Role() != identity.RoleManager || admin.Role() != identity.RoleAdmin {
		t.Error("role constants mismatch")
	}
	if emp.UserID() != "emp-1" || emp.DisplayName() != "Emp" || !emp.IsActive() {
		t.Error("employee accessors mismatch")
	}
}
