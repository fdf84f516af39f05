package core

import (
	"fmt"
	"strings"
)

const (
	// MatchNameOrHouse treats an entry as the resident's when either the
	// name or the house number matches.
	MatchNameOrHouse MatchPolicy = "name_or_house"
	// MatchNameAndHouse requires both the name and the house number.
	MatchNameAndHouse MatchPolicy = "name_and_house"
	// MatchResidentID compares stable resident IDs and falls back to
	// MatchNameOrHouse for entries recorded without one.
	MatchResidentID MatchPolicy = "resident_id"
)

type (
	MatchPolicy string

	// Identity is the resident side of a duplicate lookup.
	Identity struct {
		ResidentID string
		Name       string
		HouseNo    string
	}

	// SubscriptionKey identifies one monthly charge for one resident.
	SubscriptionKey struct {
		Identity Identity
		Month    YearMonth
	}

	// ResidentMatcher decides whether an entry belongs to a resident.
	ResidentMatcher interface {
		Matches(entry Transaction, who Identity) bool
	}
)

// NameOrHouseMatcher implements ResidentMatcher with the name OR house rule.
type NameOrHouseMatcher struct{}

func (NameOrHouseMatcher) Matches(entry Transaction, who Identity) bool {
	return sameField(entry.ResidentName, who.Name) || sameField(entry.HouseNo, who.HouseNo)
}

// NameAndHouseMatcher implements ResidentMatcher with the name AND house rule.
type NameAndHouseMatcher struct{}

func (NameAndHouseMatcher) Matches(entry Transaction, who Identity) bool {
	return sameField(entry.ResidentName, who.Name) && sameField(entry.HouseNo, who.HouseNo)
}

// ResidentIDMatcher implements ResidentMatcher on stable resident IDs.
type ResidentIDMatcher struct{}

func (ResidentIDMatcher) Matches(entry Transaction, who Identity) bool {
	if entry.ResidentID != "" && who.ResidentID != "" {
		return entry.ResidentID == who.ResidentID
	}
	return NameOrHouseMatcher{}.Matches(entry, who)
}

var matchStrategies = map[MatchPolicy]ResidentMatcher{
	MatchNameOrHouse:  NameOrHouseMatcher{},
	MatchNameAndHouse: NameAndHouseMatcher{},
	MatchResidentID:   ResidentIDMatcher{},
}

// ParseMatchPolicy validates a policy name; empty selects MatchNameOrHouse.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	p := MatchPolicy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return MatchNameOrHouse, nil
	}
	if _, ok := matchStrategies[p]; !ok {
		return "", fmt.Errorf("unsupported resident match policy: %q", s)
	}
	return p, nil
}

// Matcher returns the strategy for the policy, defaulting to name OR house.
func (p MatchPolicy) Matcher() ResidentMatcher {
	if m, ok := matchStrategies[p]; ok {
		return m
	}
	return NameOrHouseMatcher{}
}

// IdentityOf returns the resident identity recorded on an entry.
func IdentityOf(t Transaction) Identity {
	return Identity{ResidentID: t.ResidentID, Name: t.ResidentName, HouseNo: t.HouseNo}
}

// IdentityOfResident returns the identity of a registered resident.
func IdentityOfResident(r Resident) Identity {
	return Identity{ResidentID: r.ID, Name: r.Name, HouseNo: r.HouseNo}
}

func (i Identity) String() string {
	if i.HouseNo == "" {
		return i.Name
	}
	return i.Name + " (" + i.HouseNo + ")"
}

// IsSubscriptionFor reports whether entry is a subscription charge for who
// in the given month.
func IsSubscriptionFor(entry Transaction, who Identity, month YearMonth, policy MatchPolicy) bool {
	if !entry.IsSubscription() {
		return false
	}
	if !month.Contains(entry.Date) {
		return false
	}
	return policy.Matcher().Matches(entry, who)
}

// FindSubscription returns the first entry charging who for month, skipping
// the entry with ID excludeID.
func FindSubscription(entries []Transaction, who Identity, month YearMonth, excludeID string, policy MatchPolicy) (Transaction, bool) {
	for _, e := range entries {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if IsSubscriptionFor(e, who, month, policy) {
			return e, true
		}
	}
	return Transaction{}, false
}

// IsPaid reports whether a subscription for month already exists for who.
func IsPaid(entries []Transaction, who Identity, month YearMonth, excludeID string, policy MatchPolicy) bool {
	_, ok := FindSubscription(entries, who, month, excludeID, policy)
	return ok
}

func sameField(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && a == b
}
