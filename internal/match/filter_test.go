package match

import (
	"testing"

	"labmatch/internal/models"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestMatchesEmptyFiltersPassEverything(t *testing.T) {
	o := &models.Opportunity{ID: "x", LocationState: "CA", PaidType: "unpaid"}
	if !Matches(o, models.SearchFilters{}) {
		t.Fatalf("empty filters must pass")
	}
}

func TestMatchesStatesWithRemoteBypass(t *testing.T) {
	f := models.SearchFilters{States: []string{"CA", "NY"}}
	inState := &models.Opportunity{LocationState: "ny"}
	if !Matches(inState, f) {
		t.Fatalf("state match should pass (case-insensitive)")
	}
	outOfState := &models.Opportunity{LocationState: "TX"}
	if Matches(outOfState, f) {
		t.Fatalf("out-of-state onsite posting should fail")
	}
	remote := &models.Opportunity{LocationState: "TX", IsRemote: true}
	if !Matches(remote, f) {
		t.Fatalf("remote posting must bypass the state filter")
	}
}

func TestMatchesRemoteExact(t *testing.T) {
	f := models.SearchFilters{IsRemote: boolPtr(true)}
	if Matches(&models.Opportunity{IsRemote: false}, f) {
		t.Fatalf("onsite posting should fail remote filter")
	}
	if !Matches(&models.Opportunity{IsRemote: true}, f) {
		t.Fatalf("remote posting should pass remote filter")
	}
	f = models.SearchFilters{IsRemote: boolPtr(false)}
	if Matches(&models.Opportunity{IsRemote: true}, f) {
		t.Fatalf("remote posting should fail onsite filter")
	}
}

func TestMatchesDegreeMembership(t *testing.T) {
	f := models.SearchFilters{DegreeLevel: "phd"}
	open := &models.Opportunity{}
	if !Matches(open, f) {
		t.Fatalf("posting without listed levels accepts everyone")
	}
	listed := &models.Opportunity{DegreeLevels: []string{"masters", "phd"}}
	if !Matches(listed, f) {
		t.Fatalf("listed level should pass")
	}
	restricted := &models.Opportunity{DegreeLevels: []string{"undergraduate"}}
	if Matches(restricted, f) {
		t.Fatalf("unlisted level should fail")
	}
}

func TestMatchesPaidType(t *testing.T) {
	f := models.SearchFilters{PaidType: "stipend"}
	if !Matches(&models.Opportunity{PaidType: "Stipend"}, f) {
		t.Fatalf("paid type matches case-insensitively")
	}
	if Matches(&models.Opportunity{PaidType: "hourly"}, f) {
		t.Fatalf("different paid type should fail")
	}
}

func TestMatchesMinHoursOpenBounds(t *testing.T) {
	f := models.SearchFilters{MinHours: intPtr(10)}
	if !Matches(&models.Opportunity{}, f) {
		t.Fatalf("posting without bounds fits any minimum")
	}
	if !Matches(&models.Opportunity{MinHours: intPtr(20)}, f) {
		t.Fatalf("open posting max must satisfy the minimum filter")
	}
	if !Matches(&models.Opportunity{MaxHours: intPtr(15)}, f) {
		t.Fatalf("posting max above the requested minimum should pass")
	}
	if Matches(&models.Opportunity{MaxHours: intPtr(8)}, f) {
		t.Fatalf("posting capped below the requested minimum should fail")
	}
}

func TestMatchesMaxHoursOpenBounds(t *testing.T) {
	f := models.SearchFilters{MaxHours: intPtr(10)}
	if !Matches(&models.Opportunity{}, f) {
		t.Fatalf("posting without bounds fits any maximum")
	}
	if !Matches(&models.Opportunity{MaxHours: intPtr(40)}, f) {
		t.Fatalf("open posting min must satisfy the maximum filter")
	}
	if !Matches(&models.Opportunity{MinHours: intPtr(5)}, f) {
		t.Fatalf("posting starting below the requested maximum should pass")
	}
	if Matches(&models.Opportunity{MinHours: intPtr(20)}, f) {
		t.Fatalf("posting demanding more than the requested maximum should fail")
	}
}

func TestMatchesHoursRangeOverlap(t *testing.T) {
	f := models.SearchFilters{MinHours: intPtr(10), MaxHours: intPtr(20)}
	if !Matches(&models.Opportunity{MinHours: intPtr(15), MaxHours: intPtr(25)}, f) {
		t.Fatalf("overlapping ranges should pass")
	}
	if Matches(&models.Opportunity{MinHours: intPtr(25), MaxHours: intPtr(30)}, f) {
		t.Fatalf("disjoint ranges should fail")
	}
}

func TestNormalizeCanonicalizesFilterValues(t *testing.T) {
	f := Normalize(models.SearchFilters{
		States:      []string{"ca", " ny "},
		DegreeLevel: "PhD",
		PaidType:    " Stipend",
	})
	if f.States[0] != "CA" || f.States[1] != "NY" {
		t.Fatalf("states not uppercased: %v", f.States)
	}
	if f.DegreeLevel != "phd" || f.PaidType != "stipend" {
		t.Fatalf("degree/paid not lowercased: %q %q", f.DegreeLevel, f.PaidType)
	}
}

func TestMatchesFiltersCombineWithAND(t *testing.T) {
	f := models.SearchFilters{
		States:      []string{"CA"},
		DegreeLevel: "phd",
		PaidType:    "stipend",
	}
	pass := &models.Opportunity{
		LocationState: "CA",
		DegreeLevels:  []string{"phd"},
		PaidType:      "stipend",
	}
	if !Matches(pass, f) {
		t.Fatalf("all filters satisfied should pass")
	}
	failOne := &models.Opportunity{
		LocationState: "CA",
		DegreeLevels:  []string{"phd"},
		PaidType:      "hourly",
	}
	if Matches(failOne, f) {
		t.Fatalf("one failing filter must reject")
	}
}
