package domain

import (
	"sort"
	"time"
)

// ParticipationMode describes how a participant takes part in the challenge.
type ParticipationMode string

const (
	ParticipationIndividual ParticipationMode = "individual"
	ParticipationFamily     ParticipationMode = "family"
)

// ChildAgeBucket groups children's ages for family participants.
type ChildAgeBucket string

const (
	ChildAge0to3   ChildAgeBucket = "0-3"
	ChildAge4to7   ChildAgeBucket = "4-7"
	ChildAge8to12  ChildAgeBucket = "8-12"
	ChildAge13to17 ChildAgeBucket = "13-17"
)

// ChildAgeBuckets lists buckets in ascending order.
var ChildAgeBuckets = []ChildAgeBucket{ChildAge0to3, ChildAge4to7, ChildAge8to12, ChildAge13to17}

// BucketForAge maps an age in years to its bucket.
func BucketForAge(age int) (ChildAgeBucket, bool) {
	switch {
	case age < 0:
		return "", false
	case age <= 3:
		return ChildAge0to3, true
	case age <= 7:
		return ChildAge4to7, true
	case age <= 12:
		return ChildAge8to12, true
	case age <= 17:
		return ChildAge13to17, true
	default:
		return "", false
	}
}

// SortBuckets orders buckets ascending and removes duplicates.
func SortBuckets(buckets []ChildAgeBucket) []ChildAgeBucket {
	rank := make(map[ChildAgeBucket]int, len(ChildAgeBuckets))
	for i, b := range ChildAgeBuckets {
		rank[b] = i
	}
	seen := make(map[ChildAgeBucket]struct{}, len(buckets))
	out := make([]ChildAgeBucket, 0, len(buckets))
	for _, b := range buckets {
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}

// User is a challenge participant identified by the chat platform id.
type User struct {
	ID                    int64
	Username              string
	Surname               string
	GivenName             string
	Mode                  ParticipationMode
	FamilySize            *int
	HasChildren           *bool
	ChildAgeBuckets       []ChildAgeBucket
	RegistrationCompleted bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// FullName joins given name and surname.
func (u *User) FullName() string {
	switch {
	case u.GivenName == "":
		return u.Surname
	case u.Surname == "":
		return u.GivenName
	default:
		return u.GivenName + " " + u.Surname
	}
}

// FamilyFieldsConsistent reports whether family-only fields are set iff the
// participation mode is family.
func (u *User) FamilyFieldsConsistent() bool {
	if u.Mode == ParticipationFamily {
		if u.FamilySize == nil || u.HasChildren == nil {
			return false
		}
		if *u.HasChildren != (len(u.ChildAgeBuckets) > 0) {
			return false
		}
		return *u.FamilySize >= 2 && *u.FamilySize <= 10
	}
	return u.FamilySize == nil && u.HasChildren == nil && len(u.ChildAgeBuckets) == 0
}

// Identity is what a front end knows about a sender on first contact.
type Identity struct {
	ID       int64
	Username string
}
