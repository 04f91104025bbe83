package core

import (
	"math/big"
	"testing"

	"carbon-nft-system/pkg/errors"
)

func testParams(t *testing.T) *Params {
	t.Helper()
	params, err := NewParams(250, 500, "0xroyalty", map[Grade]int64{
		GradeF: 5000,
		GradeD: 7500,
		GradeC: 10000,
		GradeB: 12500,
		GradeA: 15000,
	})
	if err != nil {
		t.Fatalf("params failed: %v", err)
	}
	return params
}

// newMarket mints one token for 0xseller and returns registry, exchange and token id
func newMarket(t *testing.T, grade Grade) (*Registry, *Exchange, uint64) {
	t.Helper()
	r := NewRegistry(100, func(caller, owner string) bool { return caller == "0xgrader" })
	now := testTime(1)
	if err := r.RegisterUser("0xseller", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.RegisterUser("0xbuyer", UserTypeIndividual, now); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	id, err := r.MintToken("0xseller", "ipfs://meta", "solar", grade, 50, now)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	return r, NewExchange(r, testParams(t)), id
}

func TestCreateListingChecks(t *testing.T) {
	_, e, id := newMarket(t, GradeC)
	now := testTime(2)

	if _, err := e.CreateListing(999, "0xseller", big.NewInt(100), now); !errors.Is(err, errors.ErrTokenNotFound) {
		t.Fatalf("expected TOKEN_NOT_FOUND, got %v", err)
	}
	if _, err := e.CreateListing(id, "0xbuyer", big.NewInt(100), now); !errors.Is(err, errors.ErrNotOwner) {
		t.Fatalf("expected NOT_OWNER, got %v", err)
	}
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(0), now); !errors.Is(err, errors.ErrInvalidPrice) {
		t.Fatalf("expected INVALID_PRICE for zero, got %v", err)
	}
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(-5), now); !errors.Is(err, errors.ErrInvalidPrice) {
		t.Fatalf("expected INVALID_PRICE for negative, got %v", err)
	}

	listing, err := e.CreateListing(id, "0xseller", big.NewInt(1000), now)
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if listing.Status != ListingActive || listing.BasePrice.Int64() != 1000 {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	if _, err := e.CreateListing(id, "0xseller", big.NewInt(2000), now); !errors.Is(err, errors.ErrAlreadyListed) {
		t.Fatalf("expected ALREADY_LISTED, got %v", err)
	}
}

func TestCreateListingRejectsRetiredToken(t *testing.T) {
	r, e, id := newMarket(t, GradeC)
	if err := r.Deactivate(id, "0xseller"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	_, err := e.CreateListing(id, "0xseller", big.NewInt(1000), testTime(2))
	if !errors.Is(err, errors.ErrTokenInactive) {
		t.Fatalf("expected TOKEN_INACTIVE, got %v", err)
	}
}

func TestCancelListingTerminal(t *testing.T) {
	_, e, id := newMarket(t, GradeC)
	now := testTime(2)
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(1000), now); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	if _, err := e.CancelListing(id, "0xbuyer"); !errors.Is(err, errors.ErrNotSeller) {
		t.Fatalf("expected NOT_SELLER, got %v", err)
	}
	listing, err := e.CancelListing(id, "0xseller")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if listing.Status != ListingCancelled {
		t.Fatalf("expected cancelled status, got %s", listing.Status)
	}
	if _, err := e.CancelListing(id, "0xseller"); !errors.Is(err, errors.ErrNoActiveListing) {
		t.Fatalf("expected NO_ACTIVE_LISTING on second cancel, got %v", err)
	}
	if _, err := e.Purchase(id, "0xbuyer", big.NewInt(10000), now); !errors.Is(err, errors.ErrNoActiveListing) {
		t.Fatalf("expected NO_ACTIVE_LISTING after cancel, got %v", err)
	}

	// a new listing may be created once the prior one is terminal
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(2000), now); err != nil {
		t.Fatalf("relist after cancel failed: %v", err)
	}
}

func TestPurchaseSettlementSplit(t *testing.T) {
	r, e, id := newMarket(t, GradeA)
	now := testTime(2)
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(1000), now); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	s, err := e.Purchase(id, "0xbuyer", big.NewInt(1600), now)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	// base 1000 at grade A (150%) = 1500; fee 2.5% floors 37.5 to 37; royalty 5% = 75
	if s.SalePrice.Int64() != 1500 {
		t.Fatalf("expected sale price 1500, got %s", s.SalePrice)
	}
	if s.Fee.Int64() != 37 {
		t.Fatalf("expected fee 37, got %s", s.Fee)
	}
	if s.Royalty.Int64() != 75 {
		t.Fatalf("expected royalty 75, got %s", s.Royalty)
	}
	if s.SellerProceeds.Int64() != 1388 {
		t.Fatalf("expected proceeds 1388, got %s", s.SellerProceeds)
	}
	if s.Refund.Int64() != 100 {
		t.Fatalf("expected refund 100, got %s", s.Refund)
	}

	owner, err := r.OwnerOf(id)
	if err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if owner != "0xbuyer" {
		t.Fatalf("expected buyer as new owner, got %s", owner)
	}

	if _, err := e.Purchase(id, "0xbuyer", big.NewInt(10000), now); !errors.Is(err, errors.ErrNoActiveListing) {
		t.Fatalf("expected NO_ACTIVE_LISTING after sale, got %v", err)
	}
}

func TestPurchaseUsesGradeAtPurchaseTime(t *testing.T) {
	r, e, id := newMarket(t, GradeF)
	now := testTime(2)
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(1000), now); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	quote, err := e.Quote(id)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.Int64() != 500 {
		t.Fatalf("expected grade F quote 500, got %s", quote)
	}

	if err := r.UpdateGrade("0xgrader", id, GradeA, 95, "ipfs://v2", now); err != nil {
		t.Fatalf("grade update failed: %v", err)
	}

	s, err := e.Purchase(id, "0xbuyer", big.NewInt(1500), now)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if s.SalePrice.Int64() != 1500 {
		t.Fatalf("expected grade A price 1500, got %s", s.SalePrice)
	}
}

func TestPurchaseInsufficientPayment(t *testing.T) {
	r, e, id := newMarket(t, GradeA)
	now := testTime(2)
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(1000), now); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	_, err := e.Purchase(id, "0xbuyer", big.NewInt(1499), now)
	if !errors.Is(err, errors.ErrInsufficientPayment) {
		t.Fatalf("expected INSUFFICIENT_PAYMENT, got %v", err)
	}

	// the failed purchase leaves the listing active and ownership unchanged
	listing, err := e.GetListing(id)
	if err != nil || listing.Status != ListingActive {
		t.Fatalf("expected listing still active, got %+v (%v)", listing, err)
	}
	owner, _ := r.OwnerOf(id)
	if owner != "0xseller" {
		t.Fatalf("expected seller still owner, got %s", owner)
	}

	// exact payment succeeds with zero refund
	s, err := e.Purchase(id, "0xbuyer", big.NewInt(1500), now)
	if err != nil {
		t.Fatalf("exact payment purchase failed: %v", err)
	}
	if s.Refund.Sign() != 0 {
		t.Fatalf("expected zero refund, got %s", s.Refund)
	}
}

func TestPurchaseInactiveToken(t *testing.T) {
	r, e, id := newMarket(t, GradeC)
	now := testTime(2)
	if _, err := e.CreateListing(id, "0xseller", big.NewInt(1000), now); err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if err := r.Deactivate(id, "0xseller"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	// retiring the token does not cascade-cancel the listing, but it blocks purchase
	_, err := e.Purchase(id, "0xbuyer", big.NewInt(10000), now)
	if !errors.Is(err, errors.ErrTokenInactive) {
		t.Fatalf("expected TOKEN_INACTIVE, got %v", err)
	}
	if _, err := e.GetListing(id); err != nil {
		t.Fatalf("expected listing to remain active: %v", err)
	}
	if _, err := e.CancelListing(id, "0xseller"); err != nil {
		t.Fatalf("seller should still be able to cancel: %v", err)
	}
}

func TestActiveListingsSorted(t *testing.T) {
	r, e, _ := newMarket(t, GradeC)
	now := testTime(2)
	for i := 0; i < 3; i++ {
		if _, err := r.MintToken("0xseller", "ipfs://meta", "solar", GradeC, 10, now); err != nil {
			t.Fatalf("mint failed: %v", err)
		}
	}
	for _, id := range []uint64{3, 1, 4} {
		if _, err := e.CreateListing(id, "0xseller", big.NewInt(100), now); err != nil {
			t.Fatalf("create listing %d failed: %v", id, err)
		}
	}

	listings := e.ActiveListings()
	if len(listings) != 3 {
		t.Fatalf("expected 3 active listings, got %d", len(listings))
	}
	for i, want := range []uint64{1, 3, 4} {
		if listings[i].TokenID != want {
			t.Fatalf("expected sorted ids [1 3 4], got %v", listings)
		}
	}
}

func TestParamsValidation(t *testing.T) {
	full := map[Grade]int64{GradeF: 5000, GradeD: 7500, GradeC: 10000, GradeB: 12500, GradeA: 15000}

	if _, err := NewParams(9500, 500, "0xroyalty", full); err == nil {
		t.Fatalf("expected fee+royalty >= 10000 to be rejected")
	}
	if _, err := NewParams(-1, 500, "0xroyalty", full); err == nil {
		t.Fatalf("expected negative fee to be rejected")
	}

	missing := map[Grade]int64{GradeF: 5000, GradeD: 7500, GradeC: 10000, GradeB: 12500}
	if _, err := NewParams(250, 500, "0xroyalty", missing); err == nil {
		t.Fatalf("expected incomplete multiplier table to be rejected")
	}

	zero := map[Grade]int64{GradeF: 0, GradeD: 7500, GradeC: 10000, GradeB: 12500, GradeA: 15000}
	if _, err := NewParams(250, 500, "0xroyalty", zero); err == nil {
		t.Fatalf("expected zero multiplier to be rejected")
	}

	params, err := NewParams(250, 500, "0xroyalty", full)
	if err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	if params.MultiplierFor(GradeA) != 15000 || params.RoyaltyBeneficiary() != "0xroyalty" {
		t.Fatalf("params not carried through: %+v", params)
	}
}

func TestGradeOrdering(t *testing.T) {
	if !(GradeF < GradeD && GradeD < GradeC && GradeC < GradeB && GradeB < GradeA) {
		t.Fatalf("grade ordering broken")
	}
	for _, g := range AllGrades {
		parsed, err := ParseGrade(g.String())
		if err != nil {
			t.Fatalf("parse %s failed: %v", g, err)
		}
		if parsed != g {
			t.Fatalf("parse round trip failed for %s", g)
		}
	}
	if _, err := ParseGrade("Z"); err == nil {
		t.Fatalf("expected unknown grade to fail")
	}
}
