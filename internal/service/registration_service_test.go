package service

import (
	"context"
	"errors"
	"testing"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

func TestRegistration_FamilyWithoutChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.registration.Touch(ctx, domain.Identity{ID: 1, Username: "fam"}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := f.registration.Start(ctx, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := f.registration.Advance(ctx, 1, "A"); !errors.Is(err, apperrors.ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	steps := []struct {
		answer string
		next   domain.DialogStep
	}{
		{"Orlova", domain.StepAwaitGivenName},
		{"Olga", domain.StepAwaitParticipationMode},
		{"family", domain.StepAwaitFamilySize},
		{"3", domain.StepAwaitHasChildren},
		{"no", domain.StepDone},
	}
	var progress *RegistrationProgress
	for _, step := range steps {
		var err error
		progress, err = f.registration.Advance(ctx, 1, step.answer)
		if err != nil {
			t.Fatalf("Advance %q: %v", step.answer, err)
		}
		if progress.Step != step.next {
			t.Fatalf("after %q got step %s, want %s", step.answer, progress.Step, step.next)
		}
	}

	user := progress.User
	if user.Mode != domain.ParticipationFamily || *user.FamilySize != 3 || *user.HasChildren || len(user.ChildAgeBuckets) != 0 {
		t.Fatalf("unexpected profile %+v", user)
	}
	if _, err := f.store.Repos().Dialogs.Get(ctx, 1); err == nil {
		t.Fatalf("dialog must be removed after completion")
	}
	if got := countKind(f.outbox(t, domain.ChannelAdmin), domain.NotifyRegistrationDone); got != 1 {
		t.Fatalf("expected one admin registration notice, got %d", got)
	}
	if !containsType(f.recorder.types(), events.EventUserRegistered) {
		t.Fatalf("expected user_registered event, got %v", f.recorder.types())
	}
}

func TestRegistration_ResumesAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.registration.Touch(ctx, domain.Identity{ID: 2}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := f.registration.Start(ctx, 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.registration.Advance(ctx, 2, "Petrov"); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// A fresh service over the same store stands in for a restarted process.
	restarted := NewRegistrationService(RegistrationDependencies{Store: f.store, Dispatcher: f.dispatcher})
	progress, err := restarted.Start(ctx, 2)
	if err != nil {
		t.Fatalf("Start after restart: %v", err)
	}
	if progress.Step != domain.StepAwaitGivenName {
		t.Fatalf("expected to resume at given name, got %s", progress.Step)
	}
	for _, answer := range []string{"Pavel", "individual"} {
		if progress, err = restarted.Advance(ctx, 2, answer); err != nil {
			t.Fatalf("Advance %q: %v", answer, err)
		}
	}
	if progress.User == nil || progress.User.Surname != "Petrov" || progress.User.GivenName != "Pavel" {
		t.Fatalf("unexpected user %+v", progress.User)
	}

	again, err := restarted.Start(ctx, 2)
	if err != nil {
		t.Fatalf("repeated Start: %v", err)
	}
	if !again.AlreadyRegistered {
		t.Fatalf("repeated start must be a no-op, got %+v", again)
	}
	if _, err := f.store.Repos().Dialogs.Get(ctx, 2); err == nil {
		t.Fatalf("repeated start must not create a dialog")
	}
}

func TestRegistration_AdvanceWithoutDialog(t *testing.T) {
	f := newFixture(t)
	if _, err := f.registration.Advance(context.Background(), 5, "Ivanov"); !errors.Is(err, apperrors.ErrNoActiveDialog) {
		t.Fatalf("expected no active dialog, got %v", err)
	}
}

func TestParseChildAges(t *testing.T) {
	cases := []struct {
		input string
		want  []domain.ChildAgeBucket
		ok    bool
	}{
		{input: "3, 8", want: []domain.ChildAgeBucket{domain.ChildAge0to3, domain.ChildAge8to12}, ok: true},
		{input: "13-17 0-3 2", want: []domain.ChildAgeBucket{domain.ChildAge0to3, domain.ChildAge13to17}, ok: true},
		{input: "18", ok: false},
		{input: "", ok: false},
		{input: "five", ok: false},
	}
	for _, tc := range cases {
		got, err := ParseChildAges(tc.input)
		if tc.ok != (err == nil) {
			t.Fatalf("%q: unexpected error state %v", tc.input, err)
		}
		if !tc.ok {
			if !errors.Is(err, apperrors.ErrInvalidChildAges) {
				t.Fatalf("%q: expected invalid child ages, got %v", tc.input, err)
			}
			continue
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%q: got %v, want %v", tc.input, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%q: got %v, want %v", tc.input, got, tc.want)
			}
		}
	}
}

func TestParseFamilySizeAndYesNo(t *testing.T) {
	if _, err := ParseFamilySize("1"); !errors.Is(err, apperrors.ErrInvalidFamilySize) {
		t.Fatalf("family of one must be rejected")
	}
	if size, err := ParseFamilySize(" 10 "); err != nil || size != 10 {
		t.Fatalf("got %d %v", size, err)
	}
	if yes, err := ParseYesNo("Yes"); err != nil || !yes {
		t.Fatalf("got %v %v", yes, err)
	}
	if _, err := ParseYesNo("maybe"); !errors.Is(err, apperrors.ErrInvalidChildrenAnswer) {
		t.Fatalf("expected invalid answer, got %v", err)
	}
}

func containsType(types []events.EventType, want events.EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
