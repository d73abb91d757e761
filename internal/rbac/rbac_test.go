package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "buyer read", role: RoleBuyer, action: ActionRead, allow: true},
		{name: "buyer counter", role: RoleBuyer, action: ActionCounter, allow: true},
		{name: "seller counter", role: RoleSeller, action: ActionCounter, allow: true},
		{name: "outsider read", role: RoleOutsider, action: ActionRead, allow: false},
		{name: "outsider counter", role: RoleOutsider, action: ActionCounter, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestRoleFor(t *testing.T) {
	cases := []struct {
		name  string
		actor string
		want  Role
	}{
		{name: "buyer", actor: "usr_b", want: RoleBuyer},
		{name: "seller", actor: "usr_s", want: RoleSeller},
		{name: "stranger", actor: "usr_x", want: RoleOutsider},
		{name: "anonymous", actor: "", want: RoleOutsider},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleFor(tc.actor, "usr_b", "usr_s"); got != tc.want {
				t.Fatalf("RoleFor(%q) = %q, want %q", tc.actor, got, tc.want)
			}
		})
	}
}

func TestRoleForEmptySellerDoesNotMatchAnonymous(t *testing.T) {
	if got := RoleFor("", "usr_b", ""); got != RoleOutsider {
		t.Fatalf("expected outsider, got %q", got)
	}
}
