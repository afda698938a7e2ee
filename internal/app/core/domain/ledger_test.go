package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debit(v int64, d string) TransactionRequest {
	return TransactionRequest{Value: v, Kind: TransactionKindDebit, Description: d}
}

func credit(v int64, d string) TransactionRequest {
	return TransactionRequest{Value: v, Kind: TransactionKindCredit, Description: d}
}

func TestTryApplyCreditAndDebit(t *testing.T) {
	l := NewAccountLedger(1, 1000)
	now := time.Now()

	snap, err := l.TryApply(credit(500, "salario"), now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500), snap.Balance)
	assert.Equal(t, int64(1000), snap.Limit)
	require.Len(t, snap.RecentHistory, 1)
	assert.Equal(t, TransactionKindCredit, snap.RecentHistory[0].Kind)
	assert.Equal(t, "salario", snap.RecentHistory[0].Description)

	snap, err = l.TryApply(debit(1200, "aluguel"), now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-700), snap.Balance)
	assert.Equal(t, "aluguel", snap.RecentHistory[0].Description)
}

// 額度 1000、餘額 0：扣 1000 成功，再扣 1 失敗
func TestTryApplyLimitBoundary(t *testing.T) {
	l := NewAccountLedger(1, 1000)

	snap, err := l.TryApply(debit(1000, "tudo"), time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-1000), snap.Balance)

	_, err = l.TryApply(debit(1, "mais"), time.Now(), nil)
	assert.ErrorIs(t, err, ErrInsufficientLimit)
	assert.Equal(t, int64(-1000), l.Balance())
}

func TestTryApplyRejectionLeavesStateUntouched(t *testing.T) {
	l := NewAccountLedger(1, 100)
	_, err := l.TryApply(credit(10, "a"), time.Now(), nil)
	require.NoError(t, err)
	before := l.Snapshot(time.Unix(0, 0))

	_, err = l.TryApply(debit(111, "b"), time.Now(), nil)
	require.ErrorIs(t, err, ErrInsufficientLimit)

	after := l.Snapshot(time.Unix(0, 0))
	assert.Equal(t, before, after)
}

func TestTryApplyPersistFailureRollsNothing(t *testing.T) {
	l := NewAccountLedger(1, 100)
	boom := errors.New("disk full")

	_, err := l.TryApply(credit(10, "a"), time.Now(), func(TransactionRecord, int64) error { return boom })
	require.ErrorIs(t, err, ErrStorageFailure)
	assert.Equal(t, int64(0), l.Balance())
	assert.Empty(t, l.Snapshot(time.Now()).RecentHistory)
}

func TestTryApplyPersistSeesCandidate(t *testing.T) {
	l := NewAccountLedger(1, 100)
	var gotBalance int64
	var gotRec TransactionRecord

	snap, err := l.TryApply(debit(30, "x"), time.Now(), func(rec TransactionRecord, bal int64) error {
		gotRec, gotBalance = rec, bal
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-30), gotBalance)
	assert.Equal(t, snap.RecentHistory[0], gotRec)
}

func TestTryApplyRejectsMalformed(t *testing.T) {
	l := NewAccountLedger(1, 100)
	_, err := l.TryApply(TransactionRequest{Value: 0, Kind: TransactionKindCredit, Description: "a"}, time.Now(), nil)
	assert.ErrorIs(t, err, ErrMalformedRequest)
	_, err = l.TryApply(TransactionRequest{Value: 1, Kind: "x", Description: "a"}, time.Now(), nil)
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	l := NewAccountLedger(1, 500)
	for i := 1; i <= 11; i++ {
		_, err := l.TryApply(credit(10, fmt.Sprintf("t%d", i)), time.Now(), nil)
		require.NoError(t, err)
	}

	snap := l.Snapshot(time.Now())
	assert.Equal(t, int64(110), snap.Balance)
	require.Len(t, snap.RecentHistory, HistorySize)
	for i, rec := range snap.RecentHistory {
		assert.Equal(t, fmt.Sprintf("t%d", 11-i), rec.Description)
	}
}

func TestOccurredAtIsMonotonic(t *testing.T) {
	l := NewAccountLedger(1, 0)
	later := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	_, err := l.TryApply(credit(1, "a"), later, nil)
	require.NoError(t, err)
	snap, err := l.TryApply(credit(1, "b"), earlier, nil)
	require.NoError(t, err)

	assert.False(t, snap.RecentHistory[0].OccurredAt.Before(snap.RecentHistory[1].OccurredAt))
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewAccountLedger(1, 0)
	_, err := l.TryApply(credit(1, "a"), time.Now(), nil)
	require.NoError(t, err)

	snap := l.Snapshot(time.Now())
	snap.RecentHistory[0].Description = "mutated"

	assert.Equal(t, "a", l.Snapshot(time.Now()).RecentHistory[0].Description)
}

func TestReplayRebuildsState(t *testing.T) {
	src := NewAccountLedger(7, 50)
	var recs []TransactionRecord
	for i, req := range []TransactionRequest{credit(100, "a"), debit(120, "b"), credit(5, "c")} {
		snap, err := src.TryApply(req, time.Now(), nil)
		require.NoError(t, err, "step %d", i)
		recs = append(recs, snap.RecentHistory[0])
	}

	dst := NewAccountLedger(7, 50)
	for _, rec := range recs {
		dst.Replay(rec)
	}
	assert.Equal(t, src.Snapshot(time.Unix(1, 0)), dst.Snapshot(time.Unix(1, 0)))
}

func TestRestoreAccountLedgerTruncates(t *testing.T) {
	history := make([]TransactionRecord, HistorySize+3)
	for i := range history {
		history[i] = TransactionRecord{Value: int64(i + 1), Kind: TransactionKindCredit, Description: "x"}
	}
	l := RestoreAccountLedger(1, 10, 42, history)

	snap := l.Snapshot(time.Now())
	assert.Equal(t, int64(42), snap.Balance)
	require.Len(t, snap.RecentHistory, HistorySize)
	assert.Equal(t, int64(1), snap.RecentHistory[0].Value)
}

func TestCreditOverflowIsRejected(t *testing.T) {
	l := RestoreAccountLedger(1, 0, math.MaxInt64-1, nil)
	_, err := l.TryApply(credit(2, "a"), time.Now(), nil)
	assert.ErrorIs(t, err, ErrInsufficientLimit)
	assert.Equal(t, int64(math.MaxInt64-1), l.Balance())
}

func TestHugeDebitDoesNotWrap(t *testing.T) {
	l := NewAccountLedger(1, 10)
	_, err := l.TryApply(debit(math.MaxInt64, "a"), time.Now(), nil)
	assert.ErrorIs(t, err, ErrInsufficientLimit)
	assert.Equal(t, int64(0), l.Balance())
}

func TestSequenceFollowsCommitOrder(t *testing.T) {
	l := NewAccountLedger(1, 10)
	now := time.Now()

	for i := 1; i <= 3; i++ {
		snap, err := l.TryApply(credit(1, "c"), now, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), snap.RecentHistory[0].Sequence)
	}

	// 被拒絕或寫入失敗的交易不占用序號
	_, err := l.TryApply(debit(100, "no"), now, nil)
	require.ErrorIs(t, err, ErrInsufficientLimit)
	_, err = l.TryApply(credit(1, "no"), now, func(TransactionRecord, int64) error { return errors.New("disk") })
	require.ErrorIs(t, err, ErrStorageFailure)

	snap, err := l.TryApply(credit(1, "c"), now, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), snap.RecentHistory[0].Sequence)
}

func TestSequenceSurvivesReplayAndRestore(t *testing.T) {
	src := NewAccountLedger(1, 0)
	var recs []TransactionRecord
	for i := 0; i < 3; i++ {
		snap, err := src.TryApply(credit(1, "c"), time.Now(), nil)
		require.NoError(t, err)
		recs = append(recs, snap.RecentHistory[0])
	}

	replayed := NewAccountLedger(1, 0)
	for _, rec := range recs {
		replayed.Replay(rec)
	}
	snap, err := replayed.TryApply(credit(1, "next"), time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), snap.RecentHistory[0].Sequence)

	restored := RestoreAccountLedger(1, 0, 3, src.Snapshot(time.Now()).RecentHistory)
	snap, err = restored.TryApply(credit(1, "next"), time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), snap.RecentHistory[0].Sequence)

	// 沒有序號的舊 WAL 紀錄依順序補號
	legacy := NewAccountLedger(1, 0)
	legacy.Replay(TransactionRecord{Value: 1, Kind: TransactionKindCredit, Description: "old"})
	legacy.Replay(TransactionRecord{Value: 1, Kind: TransactionKindCredit, Description: "old"})
	assert.Equal(t, uint64(2), legacy.Snapshot(time.Now()).RecentHistory[0].Sequence)
}
