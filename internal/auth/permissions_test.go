package auth

import "testing"

func TestHasPermission_SecurityAdmin(t *testing.T) {
	allPerms := []Permission{
		PermResourceRead, PermResourceWrite, PermResourceDelete,
		PermUserManage, PermAccessLogRead, PermAccessLogWrite,
		PermEventsSubscribe,
	}

	for _, perm := range allPerms {
		if !HasPermission(RoleSecurityAdmin, perm) {
			t.Errorf("security-admin should have %s", perm)
		}
	}
}

func TestHasPermission_Manager(t *testing.T) {
	should := []Permission{PermResourceRead, PermResourceWrite, PermAccessLogWrite}
	shouldNot := []Permission{PermResourceDelete, PermUserManage, PermAccessLogRead, PermEventsSubscribe}

	for _, perm := range should {
		if !HasPermission(RoleManager, perm) {
			t.Errorf("manager should have %s", perm)
		}
	}
	for _, perm := range shouldNot {
		if HasPermission(RoleManager, perm) {
			t.Errorf("manager should NOT have %s", perm)
		}
	}
}

func TestHasPermission_Staff(t *testing.T) {
	if !HasPermission(RoleStaff, PermResourceRead) {
		t.Error("staff should have resource:read")
	}
	for _, perm := range []Permission{PermResourceWrite, PermResourceDelete, PermUserManage, PermAccessLogWrite} {
		if HasPermission(RoleStaff, perm) {
			t.Errorf("staff should NOT have %s", perm)
		}
	}
}

func TestHasPermission_InvalidRole(t *testing.T) {
	if HasPermission(Role("nonexistent"), PermResourceRead) {
		t.Error("unknown role should have no permissions")
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleManager)
	if len(perms) != 3 {
		t.Fatalf("PermissionsForRole(manager) returned %d permissions, want 3", len(perms))
	}

	// The returned slice is a copy.
	perms[0] = "tampered"
	if !HasPermission(RoleManager, PermResourceRead) {
		t.Error("mutating the returned slice changed the role table")
	}

	if PermissionsForRole(Role("ghost")) != nil {
		t.Error("unknown role should return nil")
	}
}

func TestRolesWith(t *testing.T) {
	tests := []struct {
		perm  Permission
		allow []Role
		deny  []Role
	}{
		{PermResourceRead, []Role{RoleStaff, RoleManager, RoleSecurityAdmin}, nil},
		{PermResourceWrite, []Role{RoleManager, RoleSecurityAdmin}, []Role{RoleStaff}},
		{PermResourceDelete, []Role{RoleSecurityAdmin}, []Role{RoleStaff, RoleManager}},
		{PermUserManage, []Role{RoleSecurityAdmin}, []Role{RoleStaff, RoleManager}},
	}

	for _, tt := range tests {
		t.Run(string(tt.perm), func(t *testing.T) {
			set := RolesWith(tt.perm)
			if len(set) != len(tt.allow) {
				t.Errorf("RolesWith(%s) = %v, want %v", tt.perm, set.Roles(), tt.allow)
			}
			for _, r := range tt.allow {
				if !set.Allows(r) {
					t.Errorf("RolesWith(%s) should allow %s", tt.perm, r)
				}
			}
			for _, r := range tt.deny {
				if set.Allows(r) {
					t.Errorf("RolesWith(%s) should deny %s", tt.perm, r)
				}
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"staff", RoleStaff, false},
		{"manager", RoleManager, false},
		{"security-admin", RoleSecurityAdmin, false},
		{"  Manager ", RoleManager, false},
		{"funcionario", RoleStaff, false},
		{"gerente", RoleManager, false},
		{"admin_seguranca", RoleSecurityAdmin, false},
		{"owner", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"admin", "j.doe", "ops_team-2", "a"}
	invalid := []string{"", "has space", "semi;colon", string(make([]byte, 65))}

	for _, u := range valid {
		if !IsValidUsername(u) {
			t.Errorf("IsValidUsername(%q) = false, want true", u)
		}
	}
	for _, u := range invalid {
		if IsValidUsername(u) {
			t.Errorf("IsValidUsername(%q) = true, want false", u)
		}
	}
}
