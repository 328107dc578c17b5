package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kafadas/kinjo/internal/civil"
	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	userID := "u-" + uuid.New().String()

	// Users
	if _, err := s.Users().Get(ctx, userID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetUser missing: want ErrNotFound, got %v", err)
	}
	if _, err := s.Users().Upsert(ctx, &model.User{UserID: userID, TimeZone: "UTC"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := s.Users().Upsert(ctx, &model.User{UserID: userID, TimeZone: "Asia/Tokyo"}); err != nil {
		t.Fatalf("UpsertUser update: %v", err)
	}
	if got, err := s.Users().Get(ctx, userID); err != nil || got.TimeZone != "Asia/Tokyo" {
		t.Fatalf("GetUser: got=%v err=%v", got, err)
	}

	// Categories
	kind, err := s.Categories().Create(ctx, &model.Category{UserID: userID, Name: "Kindness", Slug: "kindness", SortOrder: 1})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	help, err := s.Categories().Create(ctx, &model.Category{UserID: userID, Name: "Help", Slug: "help", SortOrder: 2})
	if err != nil {
		t.Fatalf("CreateCategory help: %v", err)
	}
	if _, err := s.Categories().Create(ctx, &model.Category{UserID: userID, Name: "Dup", Slug: "kindness"}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("CreateCategory duplicate slug: want ErrConflict, got %v", err)
	}
	if lst, err := s.Categories().List(ctx, userID); err != nil || len(lst) != 2 || lst[0].CategoryID != kind.CategoryID {
		t.Fatalf("ListCategories: n=%d err=%v", len(lst), err)
	}

	// People
	alice, err := s.People().Create(ctx, &model.Person{UserID: userID, DisplayName: "Alice", Aliases: []string{"Al"}})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	ally, err := s.People().Create(ctx, &model.Person{UserID: userID, DisplayName: "Ally"})
	if err != nil {
		t.Fatalf("CreatePerson ally: %v", err)
	}

	// Moments
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	mk := func(at time.Time, action model.Action, cat, person *string, sig bool) *model.Moment {
		m, err := s.Moments().Create(ctx, &model.Moment{
			UserID: userID, HappenedAt: at, Action: action, CategoryID: cat, PersonID: person,
			Significance: sig, Tags: []string{"t"}, Description: "d",
		})
		if err != nil {
			t.Fatalf("CreateMoment: %v", err)
		}
		return m
	}
	m1 := mk(base, model.ActionGiven, &kind.CategoryID, &ally.PersonID, true)
	mk(base.Add(24*time.Hour), model.ActionReceived, &kind.CategoryID, nil, false)
	m3 := mk(base.Add(48*time.Hour), model.ActionGiven, &help.CategoryID, &ally.PersonID, false)

	if got, err := s.Moments().Get(ctx, userID, m1.MomentID); err != nil || !got.HappenedAt.Equal(base) || len(got.Tags) != 1 || !got.Significance {
		t.Fatalf("GetMoment: got=%+v err=%v", got, err)
	}
	from, to := base.Add(time.Hour), base.Add(48*time.Hour)
	if lst, err := s.Moments().Query(ctx, model.MomentQuery{UserID: userID, From: &from, To: &to}); err != nil || len(lst) != 2 {
		t.Fatalf("QueryMoments range: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Moments().Query(ctx, model.MomentQuery{UserID: userID, Action: model.ActionOnlyGiven}); err != nil || len(lst) != 2 {
		t.Fatalf("QueryMoments given: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Moments().Query(ctx, model.MomentQuery{UserID: userID, SignificanceOnly: true}); err != nil || len(lst) != 1 {
		t.Fatalf("QueryMoments significant: n=%d err=%v", len(lst), err)
	}
	all, err := s.Moments().Query(ctx, model.MomentQuery{UserID: userID})
	if err != nil || len(all) != 3 {
		t.Fatalf("QueryMoments all: n=%d err=%v", len(all), err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].HappenedAt.Before(all[i-1].HappenedAt) {
			t.Fatalf("QueryMoments: not ordered by happenedAt")
		}
	}
	if lst, err := s.Moments().Query(ctx, model.MomentQuery{UserID: "nobody"}); err != nil || lst == nil || len(lst) != 0 {
		t.Fatalf("QueryMoments empty user: want empty slice, got %v err=%v", lst, err)
	}

	// ReassignCategory
	if n, err := s.Moments().ReassignCategory(ctx, userID, help.CategoryID, kind.CategoryID); err != nil || n != 1 {
		t.Fatalf("ReassignCategory: n=%d err=%v", n, err)
	}
	if got, err := s.Moments().Get(ctx, userID, m3.MomentID); err != nil || got.CategoryID == nil || *got.CategoryID != kind.CategoryID {
		t.Fatalf("ReassignCategory check: got=%+v err=%v", got, err)
	}

	// Merge
	if err := s.People().Merge(ctx, userID, ally.PersonID, alice.PersonID); err != nil {
		t.Fatalf("MergePeople: %v", err)
	}
	if got, err := s.Moments().Get(ctx, userID, m1.MomentID); err != nil || got.PersonID == nil || *got.PersonID != alice.PersonID {
		t.Fatalf("MergePeople repoint: got=%+v err=%v", got, err)
	}
	ppl, err := s.People().List(ctx, userID)
	if err != nil || len(ppl) != 2 {
		t.Fatalf("ListPeople: n=%d err=%v", len(ppl), err)
	}
	for _, p := range ppl {
		if p.PersonID == ally.PersonID && (p.MergedInto == nil || *p.MergedInto != alice.PersonID) {
			t.Fatalf("ListPeople: merged_into not set on %s", p.PersonID)
		}
	}
	if err := s.People().Merge(ctx, userID, alice.PersonID, ally.PersonID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Merge into merged person: want ErrNotFound, got %v", err)
	}

	// Delete
	if err := s.Moments().Delete(ctx, userID, m3.MomentID); err != nil {
		t.Fatalf("DeleteMoment: %v", err)
	}
	if err := s.Moments().Delete(ctx, userID, m3.MomentID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("DeleteMoment twice: want ErrNotFound, got %v", err)
	}

	// Reflections
	start := civil.Date{Year: 2024, Month: time.March, Day: 4}
	end := civil.Date{Year: 2024, Month: time.March, Day: 10}
	if _, err := s.Reflections().Get(ctx, userID, model.Period7d, start, end); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetReflection missing: want ErrNotFound, got %v", err)
	}
	first, err := s.Reflections().CreateIfAbsent(ctx, &model.Reflection{
		UserID: userID, Period: model.Period7d, RangeStart: start, RangeEnd: end,
		Summary: "rule text", Suggestions: []string{"a"}, Computed: json.RawMessage(`{"total":3}`), Model: model.ModelRule,
	})
	if err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	again, err := s.Reflections().CreateIfAbsent(ctx, &model.Reflection{
		UserID: userID, Period: model.Period7d, RangeStart: start, RangeEnd: end,
		Summary: "other", Computed: json.RawMessage(`{}`), Model: model.ModelRule,
	})
	if err != nil || again.ReflectionID != first.ReflectionID || again.Summary != "rule text" {
		t.Fatalf("CreateIfAbsent twice: got=%+v err=%v", again, err)
	}
	regen := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)
	up, err := s.Reflections().Upsert(ctx, &model.Reflection{
		UserID: userID, Period: model.Period7d, RangeStart: start, RangeEnd: end,
		Summary: "ai text", Suggestions: []string{"b", "c"}, Computed: json.RawMessage(`{"total":3}`),
		Model: model.ModelAI, RegeneratedAt: &regen,
	})
	if err != nil {
		t.Fatalf("UpsertReflection: %v", err)
	}
	if up.ReflectionID != first.ReflectionID || up.Model != model.ModelAI || len(up.Suggestions) != 2 ||
		up.RegeneratedAt == nil || !up.RegeneratedAt.Equal(regen) || !up.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("UpsertReflection: got=%+v", up)
	}
	if up.RangeStart != start || up.RangeEnd != end {
		t.Fatalf("UpsertReflection range: got %s..%s", up.RangeStart, up.RangeEnd)
	}

	// Streaks
	if _, err := s.Streaks().Get(ctx, userID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetStreak missing: want ErrNotFound, got %v", err)
	}
	last := civil.Date{Year: 2024, Month: time.March, Day: 11}
	if err := s.Streaks().Put(ctx, &model.Streak{UserID: userID, Current: 2, Best: 5, LastEntryDate: &last}); err != nil {
		t.Fatalf("PutStreak: %v", err)
	}
	if err := s.Streaks().Put(ctx, &model.Streak{UserID: userID, Current: 3, Best: 5, LastEntryDate: &last}); err != nil {
		t.Fatalf("PutStreak update: %v", err)
	}
	if got, err := s.Streaks().Get(ctx, userID); err != nil || got.Current != 3 || got.Best != 5 || got.LastEntryDate == nil || *got.LastEntryDate != last {
		t.Fatalf("GetStreak: got=%+v err=%v", got, err)
	}
}
