package domain

import "testing"

func boolPtr(v bool) *bool { return &v }

func TestMergeDefaultsAreOptIn(t *testing.T) {
	merged := Merge(DefaultSettings(), Overrides{})
	for _, typ := range AllTypes {
		if merged.Enabled(typ) {
			t.Fatalf("expected %s disabled by default", typ)
		}
	}
}

func TestMergeAppliesOnlySetOverrides(t *testing.T) {
	defaults := Settings{JobCloseout: true, ReviewRequests: true}
	merged := Merge(defaults, Overrides{
		EstimateFollowUps: boolPtr(true),
		ReviewRequests:    boolPtr(false),
	})

	want := Settings{EstimateFollowUps: true, JobCloseout: true}
	if merged != want {
		t.Fatalf("expected %+v, got %+v", want, merged)
	}
}

func TestOverridesPatchKeepsUntouchedKeys(t *testing.T) {
	stored := Overrides{InvoiceFollowUps: boolPtr(true), LeadResponse: boolPtr(true)}
	patched := stored.Patch(Overrides{LeadResponse: boolPtr(false)})

	if patched.InvoiceFollowUps == nil || !*patched.InvoiceFollowUps {
		t.Fatal("expected invoice_followups to survive the patch")
	}
	if patched.LeadResponse == nil || *patched.LeadResponse {
		t.Fatal("expected lead_response to be switched off")
	}
}

func TestSettingsEnabledMapsPluralToggles(t *testing.T) {
	s := Settings{EstimateFollowUps: true, InvoiceFollowUps: true, JobCloseout: true, ReviewRequests: true, LeadResponse: true}
	for _, typ := range AllTypes {
		if !s.Enabled(typ) {
			t.Fatalf("expected %s enabled", typ)
		}
	}
	if s.Enabled(Type("unknown")) {
		t.Fatal("unknown type must never be enabled")
	}
}

func TestStatusCanFinishAs(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusPending, StatusFailed, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusProcessing, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanFinishAs(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
