package access

import "testing"

func TestCanView(t *testing.T) {
	cases := []struct {
		role      Role
		owner     string
		requester string
		want      bool
	}{
		{RoleAdmin, "bob", "alice", true},
		{RoleAdmin, "alice", "alice", true},
		{RoleUser, "bob", "bob", true},
		{RoleUser, "bob", "carol", false},
		{RoleUser, "alice", "bob", false},
	}
	for _, c := range cases {
		if got := CanView(c.role, c.owner, c.requester); got != c.want {
			t.Fatalf("CanView(%s, %s, %s) = %v, want %v", c.role, c.owner, c.requester, got, c.want)
		}
	}
}

func TestCanDelete(t *testing.T) {
	if !CanDelete(RoleAdmin) {
		t.Fatal("admin should be able to delete")
	}
	if CanDelete(RoleUser) {
		t.Fatal("plain user should not be able to delete")
	}
}

func TestParseRoleDefaultsToUser(t *testing.T) {
	if ParseRole("admin") != RoleAdmin {
		t.Fatal("admin should parse as admin")
	}
	if ParseRole("superuser") != RoleUser {
		t.Fatal("unknown roles should default to user")
	}
}
