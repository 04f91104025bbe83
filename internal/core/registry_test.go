package core

import (
	"testing"
	"time"

	"carbon-nft-system/pkg/errors"
)

func allowAllGraders(caller, owner string) bool { return true }

func testTime(day int) time.Time {
	return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
}

func newTestRegistry(limit int) *Registry {
	return NewRegistry(limit, allowAllGraders)
}

func TestRegisterUserOnce(t *testing.T) {
	r := newTestRegistry(10)
	now := testTime(1)

	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := r.RegisterUser("0xalice", UserTypeCompany, now.Add(time.Hour))
	if !errors.Is(err, errors.ErrAlreadyRegistered) {
		t.Fatalf("expected ALREADY_REGISTERED, got %v", err)
	}

	user, err := r.GetUser("0xalice")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if user.Type != UserTypeIndividual || !user.RegisteredAt.Equal(now) {
		t.Fatalf("second registration mutated user record: %+v", user)
	}
}

func TestMintRequiresRegistration(t *testing.T) {
	r := newTestRegistry(10)
	_, err := r.MintToken("0xnobody", "ipfs://meta", "solar", GradeC, 50, testTime(1))
	if !errors.Is(err, errors.ErrNotRegistered) {
		t.Fatalf("expected NOT_REGISTERED, got %v", err)
	}
}

func TestMintSequentialIDs(t *testing.T) {
	r := newTestRegistry(100)
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for want := uint64(1); want <= 5; want++ {
		id, err := r.MintToken("0xalice", "ipfs://meta", "solar", GradeC, 10, now)
		if err != nil {
			t.Fatalf("mint %d failed: %v", want, err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}

	// a failed mint must not consume an id
	if _, err := r.MintToken("0xnobody", "ipfs://meta", "wind", GradeF, 0, now); err == nil {
		t.Fatalf("expected mint for unregistered recipient to fail")
	}
	id, err := r.MintToken("0xalice", "ipfs://meta", "wind", GradeB, 20, now)
	if err != nil {
		t.Fatalf("mint after failed attempt failed: %v", err)
	}
	if id != 6 {
		t.Fatalf("expected id 6 with no gap, got %d", id)
	}
}

func TestUploadLimitSlidingWindow(t *testing.T) {
	const limit = 3
	r := newTestRegistry(limit)
	start := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, start); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for i := 0; i < limit; i++ {
		if _, err := r.MintToken("0xalice", "ipfs://meta", "solar", GradeC, 10, start.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("mint %d within limit failed: %v", i+1, err)
		}
	}

	_, err := r.MintToken("0xalice", "ipfs://meta", "solar", GradeC, 10, start.Add(4*time.Hour))
	if !errors.Is(err, errors.ErrUploadLimitExceeded) {
		t.Fatalf("expected UPLOAD_LIMIT_EXCEEDED, got %v", err)
	}
	if r.RemainingUploads("0xalice", start.Add(4*time.Hour)) != 0 {
		t.Fatalf("expected 0 remaining uploads")
	}
	if r.CanUpload("0xalice", start.Add(4*time.Hour)) {
		t.Fatalf("expected CanUpload false at limit")
	}

	// exactly 7 days after the window start the counter resets
	after := start.Add(7 * 24 * time.Hour)
	if r.RemainingUploads("0xalice", after) != limit {
		t.Fatalf("expected full quota after window rollover, got %d", r.RemainingUploads("0xalice", after))
	}
	if _, err := r.MintToken("0xalice", "ipfs://meta", "solar", GradeC, 10, after); err != nil {
		t.Fatalf("mint after rollover failed: %v", err)
	}
	if r.RemainingUploads("0xalice", after) != limit-1 {
		t.Fatalf("expected %d remaining after one upload in new window", limit-1)
	}
}

func TestReadQueriesDoNotPersistRollover(t *testing.T) {
	const limit = 2
	r := newTestRegistry(limit)
	start := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, start); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := r.MintToken("0xalice", "ipfs://meta", "solar", GradeC, 10, start); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	after := start.Add(8 * 24 * time.Hour)
	if got := r.RemainingUploads("0xalice", after); got != limit {
		t.Fatalf("read should simulate rollover, got %d", got)
	}
	// stored window must be untouched by the read
	w := r.windows["0xalice"]
	if !w.WeekStart.Equal(start) || w.Uploads != 1 {
		t.Fatalf("read query mutated stored window: %+v", w)
	}
}

func TestUpdateGrade(t *testing.T) {
	r := NewRegistry(10, func(caller, owner string) bool { return caller == "0xgrader" })
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	id, err := r.MintToken("0xalice", "ipfs://v1", "solar", GradeF, 5, now)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := r.Endorse(id, "0xbob", now); err != nil {
		t.Fatalf("endorse failed: %v", err)
	}

	err = r.UpdateGrade("0xalice", id, GradeA, 95, "ipfs://v2", now)
	if !errors.Is(err, errors.ErrUnauthorizedGrader) {
		t.Fatalf("expected UNAUTHORIZED_GRADER for owner, got %v", err)
	}

	if err := r.UpdateGrade("0xgrader", id, GradeA, 95, "ipfs://v2", now); err != nil {
		t.Fatalf("grader update failed: %v", err)
	}

	token, err := r.GetToken(id)
	if err != nil {
		t.Fatalf("get token failed: %v", err)
	}
	if token.Grade != GradeA || token.Score != 95 || token.MetadataURI != "ipfs://v2" {
		t.Fatalf("update not applied: %+v", token)
	}
	if token.Owner != "0xalice" || token.Endorsements != 1 {
		t.Fatalf("update must not touch owner or endorsements: %+v", token)
	}

	err = r.UpdateGrade("0xgrader", 999, GradeA, 95, "ipfs://v2", now)
	if !errors.Is(err, errors.ErrTokenNotFound) {
		t.Fatalf("expected TOKEN_NOT_FOUND for unknown id, got %v", err)
	}
}

func TestUpdateGradeCountsAgainstOwnerWindow(t *testing.T) {
	const limit = 2
	r := NewRegistry(limit, func(caller, owner string) bool { return caller == "0xgrader" })
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	id, err := r.MintToken("0xalice", "ipfs://v1", "solar", GradeF, 5, now)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := r.UpdateGrade("0xgrader", id, GradeD, 10, "ipfs://v2", now); err != nil {
		t.Fatalf("update within limit failed: %v", err)
	}
	err = r.UpdateGrade("0xgrader", id, GradeC, 20, "ipfs://v3", now)
	if !errors.Is(err, errors.ErrUploadLimitExceeded) {
		t.Fatalf("expected UPLOAD_LIMIT_EXCEEDED on owner window, got %v", err)
	}

	// the failed update must leave the token untouched
	token, _ := r.GetToken(id)
	if token.Grade != GradeD || token.Score != 10 || token.MetadataURI != "ipfs://v2" {
		t.Fatalf("failed update mutated token: %+v", token)
	}
}

func TestUpdateGradeRejectsRetiredToken(t *testing.T) {
	r := newTestRegistry(10)
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	id, err := r.MintToken("0xalice", "ipfs://v1", "solar", GradeC, 50, now)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := r.Deactivate(id, "0xalice"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	err = r.UpdateGrade("0xgrader", id, GradeA, 95, "ipfs://v2", now)
	if !errors.Is(err, errors.ErrTokenNotFound) {
		t.Fatalf("expected TOKEN_NOT_FOUND for retired token, got %v", err)
	}
}

func TestEndorse(t *testing.T) {
	r := newTestRegistry(10)
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	id, err := r.MintToken("0xalice", "ipfs://v1", "solar", GradeC, 50, now)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err = r.Endorse(id, "0xalice", now)
	if !errors.Is(err, errors.ErrSelfEndorsement) {
		t.Fatalf("expected SELF_ENDORSEMENT, got %v", err)
	}
	if err := r.Endorse(id, "0xbob", now); err != nil {
		t.Fatalf("endorse failed: %v", err)
	}
	if err := r.Endorse(id, "0xcarol", now); err != nil {
		t.Fatalf("endorse failed: %v", err)
	}

	token, _ := r.GetToken(id)
	if token.Endorsements != 2 {
		t.Fatalf("expected 2 endorsements, got %d", token.Endorsements)
	}
	// endorsements are not uploads
	if got := r.RemainingUploads("0xalice", now); got != 9 {
		t.Fatalf("endorse consumed upload quota, remaining %d", got)
	}
}

func TestDeactivate(t *testing.T) {
	r := newTestRegistry(10)
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	id, err := r.MintToken("0xalice", "ipfs://v1", "solar", GradeC, 50, now)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err = r.Deactivate(id, "0xbob")
	if !errors.Is(err, errors.ErrNotOwner) {
		t.Fatalf("expected NOT_OWNER, got %v", err)
	}
	if err := r.Deactivate(id, "0xalice"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	err = r.Deactivate(id, "0xalice")
	if !errors.Is(err, errors.ErrTokenNotFound) {
		t.Fatalf("expected TOKEN_NOT_FOUND on second deactivate, got %v", err)
	}

	// retired tokens remain visible and listed under the minter
	token, err := r.GetToken(id)
	if err != nil {
		t.Fatalf("retired token should stay queryable: %v", err)
	}
	if token.Active {
		t.Fatalf("expected token inactive")
	}
	if ids := r.GetUserTokens("0xalice"); len(ids) != 1 || ids[0] != id {
		t.Fatalf("expected minted list to include retired token, got %v", ids)
	}
}

func TestGetUserTokensOrder(t *testing.T) {
	r := newTestRegistry(100)
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.RegisterUser("0xbob", UserTypeCompany, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	var want []uint64
	for i := 0; i < 3; i++ {
		id, err := r.MintToken("0xalice", "ipfs://meta", "solar", GradeC, 10, now)
		if err != nil {
			t.Fatalf("mint failed: %v", err)
		}
		want = append(want, id)
		if _, err := r.MintToken("0xbob", "ipfs://meta", "wind", GradeB, 20, now); err != nil {
			t.Fatalf("mint failed: %v", err)
		}
	}

	got := r.GetUserTokens("0xalice")
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected insertion order %v, got %v", want, got)
		}
	}
}

func TestGradeDistribution(t *testing.T) {
	r := newTestRegistry(100)
	now := testTime(1)
	if err := r.RegisterUser("0xalice", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	for _, g := range []Grade{GradeA, GradeA, GradeC, GradeF} {
		if _, err := r.MintToken("0xalice", "ipfs://meta", "solar", g, 10, now); err != nil {
			t.Fatalf("mint failed: %v", err)
		}
	}
	if err := r.Deactivate(4, "0xalice"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	dist := r.GradeDistribution()
	if dist[GradeA] != 2 || dist[GradeC] != 1 || dist[GradeF] != 0 || dist[GradeB] != 0 || dist[GradeD] != 0 {
		t.Fatalf("unexpected distribution: %v", dist)
	}
}
