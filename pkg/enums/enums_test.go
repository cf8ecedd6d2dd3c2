package enums

import "testing"

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != UserRoleAdmin {
		t.Fatalf("expected admin got %s", role)
	}
	if _, err := ParseUserRole("owner"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRoleForStaff(t *testing.T) {
	if RoleForStaff(true) != UserRoleAdmin {
		t.Fatal("staff users should map to admin")
	}
	if RoleForStaff(false) != UserRoleCustomer {
		t.Fatal("regular users should map to customer")
	}
}

func TestUserTokenKindIsValid(t *testing.T) {
	if !UserTokenKindPasswordReset.IsValid() {
		t.Fatal("expected password_reset to be valid")
	}
	if UserTokenKind("login").IsValid() {
		t.Fatal("unexpected valid token kind")
	}
}
