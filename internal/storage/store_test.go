package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mynotes/srs/internal/domain"
	"github.com/mynotes/srs/internal/sm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timeCmp = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "srs-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreate(t *testing.T, store *Store, nc NewCard, now time.Time) (domain.Card, domain.SchedulingState) {
	t.Helper()
	card, state, err := store.CreateCard(nc, now)
	require.NoError(t, err)
	return card, state
}

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func TestCreateCard(t *testing.T) {
	store := openTestStore(t)

	card, state, err := store.CreateCard(NewCard{
		Front: "capital of France?",
		Back:  "Paris",
		Type:  domain.Basic,
		Deck:  "geography",
		Tags:  []string{"europe", "capitals"},
	}, testNow)
	require.NoError(t, err)

	assert.NotEmpty(t, card.ID)
	assert.Equal(t, domain.New, state.Stage)
	assert.Equal(t, 0, state.IntervalDays)
	assert.Equal(t, domain.DefaultEase, state.EaseFactor)
	assert.True(t, state.DueAt.Equal(testNow), "a new card is due immediately")
	assert.Nil(t, state.LastReviewedAt)

	got, gotState, err := store.GetCard(card.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(card, got, timeCmp); diff != "" {
		t.Errorf("stored card differs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(state, gotState, timeCmp); diff != "" {
		t.Errorf("stored state differs (-want +got):\n%s", diff)
	}
}

func TestCreateCardValidation(t *testing.T) {
	store := openTestStore(t)

	_, _, err := store.CreateCard(NewCard{Front: "", Back: "x"}, testNow)
	assert.Error(t, err, "empty front must be rejected")

	_, _, err = store.CreateCard(NewCard{Front: "x", Back: ""}, testNow)
	assert.Error(t, err, "empty back must be rejected")

	_, _, err = store.CreateCard(NewCard{Front: "x", Back: "y", Tags: []string{"ok", ""}}, testNow)
	assert.Error(t, err, "empty tag must be rejected")
}

func TestGetCardNotFound(t *testing.T) {
	store := openTestStore(t)

	_, _, err := store.GetCard("no-such-card")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCardsInsertionOrderAndDeckFilter(t *testing.T) {
	store := openTestStore(t)

	c1, _ := mustCreate(t, store, NewCard{Front: "1", Back: "a", Deck: "alpha"}, testNow)
	c2, _ := mustCreate(t, store, NewCard{Front: "2", Back: "b", Deck: "beta"}, testNow)
	c3, _ := mustCreate(t, store, NewCard{Front: "3", Back: "c", Deck: "alpha"}, testNow)

	all, err := store.ListCards("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c1.ID, c2.ID, c3.ID}, []string{all[0].Card.ID, all[1].Card.ID, all[2].Card.ID})

	alpha, err := store.ListCards("alpha")
	require.NoError(t, err)
	require.Len(t, alpha, 2)
	assert.Equal(t, c1.ID, alpha[0].Card.ID)
	assert.Equal(t, c3.ID, alpha[1].Card.ID)

	// Listing twice yields the same snapshot; no hidden cursor state.
	again, err := store.ListCards("")
	require.NoError(t, err)
	if diff := cmp.Diff(all, again, timeCmp); diff != "" {
		t.Errorf("restarted listing differs (-first +second):\n%s", diff)
	}
}

func gradedState(state domain.SchedulingState, at time.Time) (domain.SchedulingState, domain.ReviewRecord) {
	reviewed := at
	next := state
	next.Stage = domain.Learning
	next.Repetitions = state.Repetitions + 1
	next.IntervalDays = 1
	next.DueAt = at.AddDate(0, 0, 1)
	next.LastReviewedAt = &reviewed
	rec := domain.ReviewRecord{
		ReviewedAt:    at,
		Grade:         4,
		StageBefore:   state.Stage,
		IntervalAfter: next.IntervalDays,
	}
	return next, rec
}

func TestApplyReview(t *testing.T) {
	store := openTestStore(t)
	card, state := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	next, rec := gradedState(state, testNow)
	applied, appliedRec, err := store.ApplyReview(card.ID, next, rec)
	require.NoError(t, err)

	assert.Equal(t, state.Version+1, applied.Version, "version token bumps on apply")
	assert.NotEmpty(t, appliedRec.ID)
	assert.Equal(t, card.ID, appliedRec.CardID)

	_, stored, err := store.GetCard(card.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(applied, stored, timeCmp); diff != "" {
		t.Errorf("stored state differs from applied (-want +got):\n%s", diff)
	}

	history, err := store.History(card.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, appliedRec.ID, history[0].ID)
	assert.Equal(t, domain.Grade(4), history[0].Grade)
	assert.Equal(t, domain.New, history[0].StageBefore)
}

func TestApplyReviewStaleVersionConflicts(t *testing.T) {
	store := openTestStore(t)
	card, state := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	// Session A applies successfully.
	nextA, recA := gradedState(state, testNow)
	_, _, err := store.ApplyReview(card.ID, nextA, recA)
	require.NoError(t, err)

	// Session B still holds the original version token.
	nextB, recB := gradedState(state, testNow.Add(time.Minute))
	_, _, err = store.ApplyReview(card.ID, nextB, recB)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// The conflicting write must not have appended anything.
	history, err := store.History(card.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApplyReviewUnknownCard(t *testing.T) {
	store := openTestStore(t)

	next, rec := gradedState(domain.NewState(testNow), testNow)
	_, _, err := store.ApplyReview("no-such-card", next, rec)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevertReviewRestoresExactly(t *testing.T) {
	store := openTestStore(t)
	card, before := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	next, rec := gradedState(before, testNow)
	applied, appliedRec, err := store.ApplyReview(card.ID, next, rec)
	require.NoError(t, err)

	restored, err := store.RevertReview(card.ID, before, appliedRec.ID, applied.Version)
	require.NoError(t, err)

	_, stored, err := store.GetCard(card.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(before, stored, timeCmp); diff != "" {
		t.Errorf("state not restored exactly (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, restored, timeCmp); diff != "" {
		t.Errorf("returned state differs (-want +got):\n%s", diff)
	}

	history, err := store.History(card.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "the appended record must be gone")
}

func TestRevertReviewUnknownRecord(t *testing.T) {
	store := openTestStore(t)
	card, state := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	_, err := store.RevertReview(card.ID, state, "no-such-record", state.Version)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevertReviewStaleVersionConflicts(t *testing.T) {
	store := openTestStore(t)
	card, before := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	next, rec := gradedState(before, testNow)
	_, appliedRec, err := store.ApplyReview(card.ID, next, rec)
	require.NoError(t, err)

	_, err = store.RevertReview(card.ID, before, appliedRec.ID, 99)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestHistoryOrderAndNotFound(t *testing.T) {
	store := openTestStore(t)
	card, state := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	at := testNow
	for i := 0; i < 3; i++ {
		next, rec := gradedState(state, at)
		applied, _, err := store.ApplyReview(card.ID, next, rec)
		require.NoError(t, err)
		state = applied
		at = at.Add(24 * time.Hour)
	}

	history, err := store.History(card.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].ReviewedAt.Before(history[i].ReviewedAt), "ledger must be oldest first")
	}

	_, err = store.History("no-such-card")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	card, state := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	stats, err := store.Stats(card.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Reviews)
	assert.Nil(t, stats.LastReviewedAt)

	next, rec := gradedState(state, testNow)
	_, _, err = store.ApplyReview(card.ID, next, rec)
	require.NoError(t, err)

	stats, err = store.Stats(card.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reviews)
	require.NotNil(t, stats.LastReviewedAt)
	assert.True(t, stats.LastReviewedAt.Equal(testNow))
}

func TestRebuildStateFromLedger(t *testing.T) {
	store := openTestStore(t)
	params := sm2.DefaultParams()
	card, state := mustCreate(t, store, NewCard{Front: "f", Back: "b"}, testNow)

	// Grade through the real scheduler so the ledger is authoritative.
	at := testNow
	for _, q := range []domain.Grade{4, 4, 5, 2, 4} {
		next, err := params.Next(state, q, at)
		require.NoError(t, err)
		applied, _, err := store.ApplyReview(card.ID, next, domain.ReviewRecord{
			ReviewedAt:    at,
			Grade:         q,
			StageBefore:   state.Stage,
			IntervalAfter: next.IntervalDays,
		})
		require.NoError(t, err)
		state = applied
		at = at.AddDate(0, 0, applied.IntervalDays)
	}

	rebuilt, err := store.RebuildState(card.ID, params)
	require.NoError(t, err)

	assert.Equal(t, state.Stage, rebuilt.Stage)
	assert.Equal(t, state.Repetitions, rebuilt.Repetitions)
	assert.InDelta(t, state.EaseFactor, rebuilt.EaseFactor, 1e-9)
	assert.Equal(t, state.IntervalDays, rebuilt.IntervalDays)
	assert.True(t, state.DueAt.Equal(rebuilt.DueAt))
	assert.Equal(t, state.Version+1, rebuilt.Version, "rebuild bumps the version")

	_, stored, err := store.GetCard(card.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(rebuilt, stored, timeCmp); diff != "" {
		t.Errorf("stored state differs from rebuilt (-want +got):\n%s", diff)
	}
}
