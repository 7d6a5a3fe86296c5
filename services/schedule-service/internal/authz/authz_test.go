package authz

import (
	"errors"
	"testing"
)

func TestAuthorizeScheduleMutation(t *testing.T) {
	cases := []struct {
		name                   string
		callerID, role, target string
		allowed                bool
	}{
		{"admin edits anyone", "user-1", RoleAdmin, "prov-2", true},
		{"provider edits self", "prov-1", "provider", "prov-1", true},
		{"provider edits other", "prov-1", "provider", "prov-2", false},
		{"staff edits provider", "staff-1", "staff", "prov-1", false},
		{"empty caller never matches empty target", "", "provider", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthorizeScheduleMutation(tc.callerID, tc.role, tc.target)
			if tc.allowed && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("expected ErrPermissionDenied, got %v", err)
			}
		})
	}
}
