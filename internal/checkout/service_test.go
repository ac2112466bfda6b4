package checkout

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-zone-backend/internal/equipment"
	"checkout-zone-backend/internal/platform/apperr"
)

// 固定時計。時刻依存のフィールドを決定的にする。
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 連番IDジェネレータ（並行テストでも使うので atomic）
type seqIDGen struct{ n int64 }

func (g *seqIDGen) New() string {
	return fmt.Sprintf("id-%04d", atomic.AddInt64(&g.n, 1))
}

type fixture struct {
	svc    *Service
	ledger *equipment.MemoryStore
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ledger := equipment.NewMemoryStore()
	svc := NewService(NewMemoryStore(), ledger)
	svc.clock = fixedClock{t: now}
	svc.id = &seqIDGen{}
	return &fixture{svc: svc, ledger: ledger, now: now}
}

func (f *fixture) addEquipment(t *testing.T, id string, cond equipment.Condition) {
	t.Helper()
	err := f.ledger.Insert(context.Background(), &equipment.Equipment{
		EquipmentID: id,
		InternalID:  "INT-" + id,
		Name:        "Equipment " + id,
		Type:        "LAPTOP",
		Condition:   cond,
		Status:      equipment.StatusAvailable,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	})
	require.NoError(t, err)
}

func (f *fixture) statusOf(t *testing.T, id string) equipment.Status {
	t.Helper()
	st, err := f.ledger.AvailabilityOf(context.Background(), id)
	require.NoError(t, err)
	return st
}

// 申請→承認→払出→返却の基本動線
func TestLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-b", equipment.CondGood)
	f.addEquipment(t, "eq-a", equipment.CondNew)

	req, err := f.svc.Submit(ctx, CreateRequestInput{
		UserID:       "user-1",
		EquipmentIDs: []string{"eq-b", "eq-a"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	// 昇順に正規化される
	assert.Equal(t, []string{"eq-a", "eq-b"}, req.EquipmentIDs)
	// 提出だけでは予約されない
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-a"))
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-b"))

	approved, err := f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "mgr-1", *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovalDate)
	// 承認でも予約はまだ
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-a"))

	recs, err := f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "eq-a", recs[0].EquipmentID)
	assert.Equal(t, "eq-b", recs[1].EquipmentID)
	assert.Equal(t, equipment.CondNew, recs[0].ConditionAtCheckout)
	assert.True(t, recs[0].Open)
	assert.Equal(t, equipment.StatusReserved, f.statusOf(t, "eq-a"))
	assert.Equal(t, equipment.StatusReserved, f.statusOf(t, "eq-b"))

	done, err := f.svc.GetRequest(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	open, err := f.svc.ListOpenRecords(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	// 片方だけ返却。もう片方は貸出中のまま。
	ret, err := f.svc.Return(ctx, recs[0].RecordID, ReturnInput{
		ManagerID: "mgr-1",
		Condition: "FAIR",
	})
	require.NoError(t, err)
	assert.False(t, ret.Open)
	require.NotNil(t, ret.ConditionAtReturn)
	assert.Equal(t, equipment.CondFair, *ret.ConditionAtReturn)
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-a"))
	assert.Equal(t, equipment.StatusReserved, f.statusOf(t, "eq-b"))

	// 返却時の評価が新たな基準値になる
	cond, err := f.ledger.ConditionOf(ctx, "eq-a")
	require.NoError(t, err)
	assert.Equal(t, equipment.CondFair, cond)

	open, err = f.svc.ListOpenRecords(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "eq-b", open[0].EquipmentID)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	_, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))

	_, err = f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{" ", ""}})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))

	bad := "03/01/2026"
	_, err = f.svc.Submit(ctx, CreateRequestInput{
		UserID: "user-1", EquipmentIDs: []string{"eq-a"}, NeededBy: &bad,
	})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))

	_, err = f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"ghost"}})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

// 重複指定は1点に畳まれる
func TestSubmit_DeduplicatesEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{
		UserID:       "user-1",
		EquipmentIDs: []string{"eq-a", "eq-a", "eq-a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"eq-a"}, req.EquipmentIDs)
}

func TestSubmit_RejectsUnavailableEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)
	require.NoError(t, f.ledger.Reserve(ctx, "eq-a"))

	_, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))
}

// 提出後に可用性が変わった場合、承認の関門で弾かれる
func TestApprove_RecheckGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	require.NoError(t, err)

	// 提出と決裁の間に別ルートで予約された
	require.NoError(t, f.ledger.Reserve(ctx, "eq-a"))

	_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))

	// 申請は PENDING のまま。機材が戻れば承認し直せる。
	got, err := f.svc.GetRequest(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	require.NoError(t, f.ledger.Release(ctx, "eq-a", equipment.CondGood))
	approved, err := f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
}

// 廃棄済み機材も承認関門では Unavailable 扱い
func TestApprove_RetiredEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	require.NoError(t, err)

	require.NoError(t, f.ledger.SetStatus(ctx, "eq-a", equipment.StatusAvailable, equipment.StatusRetired))

	_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))
}

func TestReject_NoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	require.NoError(t, err)

	notes := "not this month"
	rejected, err := f.svc.Reject(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1", Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ApprovalNotes)
	assert.Equal(t, notes, *rejected.ApprovalNotes)
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-a"))

	// 却下後の再決裁は不可
	_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
	_, err = f.svc.Reject(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
}

func TestFulfill_RequiresApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	require.NoError(t, err)

	_, err = f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
}

// 一部の機材が取れなければ全予約を巻き戻す
func TestFulfill_PartialFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)
	f.addEquipment(t, "eq-b", equipment.CondGood)
	f.addEquipment(t, "eq-c", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{
		UserID:       "user-1",
		EquipmentIDs: []string{"eq-a", "eq-b", "eq-c"},
	})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	require.NoError(t, err)

	// 承認後・払出前に eq-b が横取りされた
	require.NoError(t, f.ledger.Reserve(ctx, "eq-b"))

	_, err = f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))

	// eq-a は巻き戻されて AVAILABLE、eq-b は横取り側の RESERVED のまま
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-a"))
	assert.Equal(t, equipment.StatusReserved, f.statusOf(t, "eq-b"))
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-c"))

	// 申請は APPROVED のまま残り、機材が戻れば再払出できる
	got, err := f.svc.GetRequest(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	require.NoError(t, f.ledger.Release(ctx, "eq-b", equipment.CondGood))
	recs, err := f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestFulfill_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	require.NoError(t, err)
	_, err = f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	require.NoError(t, err)

	// COMPLETED からの再払出は不可
	_, err = f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
}

func TestReturn_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	require.NoError(t, err)
	recs, err := f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, recs[0].RecordID, ReturnInput{ManagerID: "mgr-1", Condition: "BROKEN"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidRequest))

	_, err = f.svc.Return(ctx, "no-such-record", ReturnInput{ManagerID: "mgr-1", Condition: "GOOD"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	// 小文字でも受ける
	ret, err := f.svc.Return(ctx, recs[0].RecordID, ReturnInput{ManagerID: "mgr-1", Condition: "damaged"})
	require.NoError(t, err)
	require.NotNil(t, ret.ConditionAtReturn)
	assert.Equal(t, equipment.CondDamaged, *ret.ConditionAtReturn)

	// 二重返却は不可
	_, err = f.svc.Return(ctx, recs[0].RecordID, ReturnInput{ManagerID: "mgr-1", Condition: "GOOD"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
}

// Release を一時的に失敗させる台帳ラッパ
type flakyLedger struct {
	Ledger
	failRelease bool
}

func (l *flakyLedger) Release(ctx context.Context, id string, cond equipment.Condition) error {
	if l.failRelease {
		return apperr.Internal("storage unavailable")
	}
	return l.Ledger.Release(ctx, id, cond)
}

// 台帳への返却反映に失敗したら記録の閉鎖を取り消す。
// 記録だけ閉じて機材が RESERVED のまま残る中途半端な状態を作らない。
func TestReturn_ReleaseFailureReopensRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	flaky := &flakyLedger{Ledger: f.ledger}
	f.svc.ledger = flaky

	req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
	require.NoError(t, err)
	recs, err := f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
	require.NoError(t, err)

	flaky.failRelease = true
	_, err = f.svc.Return(ctx, recs[0].RecordID, ReturnInput{ManagerID: "mgr-1", Condition: "FAIR"})
	require.Error(t, err)

	// 記録は開いたまま、機材も貸出中のまま
	rec, err := f.svc.GetRecord(ctx, recs[0].RecordID)
	require.NoError(t, err)
	assert.True(t, rec.Open)
	assert.Nil(t, rec.ConditionAtReturn)
	assert.Equal(t, equipment.StatusReserved, f.statusOf(t, "eq-a"))

	// 障害が収まれば同じ返却をやり直せる
	flaky.failRelease = false
	ret, err := f.svc.Return(ctx, recs[0].RecordID, ReturnInput{ManagerID: "mgr-1", Condition: "FAIR"})
	require.NoError(t, err)
	assert.False(t, ret.Open)
	assert.Equal(t, equipment.StatusAvailable, f.statusOf(t, "eq-a"))
}

func TestListEquipmentHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEquipment(t, "eq-a", equipment.CondGood)

	for i := 0; i < 2; i++ {
		req, err := f.svc.Submit(ctx, CreateRequestInput{UserID: "user-1", EquipmentIDs: []string{"eq-a"}})
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, req.RequestID, DecisionInput{ApproverID: "mgr-1"})
		require.NoError(t, err)
		recs, err := f.svc.Fulfill(ctx, req.RequestID, FulfillInput{ManagerID: "mgr-1"})
		require.NoError(t, err)
		_, err = f.svc.Return(ctx, recs[0].RecordID, ReturnInput{ManagerID: "mgr-1", Condition: "GOOD"})
		require.NoError(t, err)
	}

	hist, err := f.svc.ListEquipmentHistory(ctx, "eq-a")
	require.NoError(t, err)
	assert.Len(t, hist, 2)
	for _, h := range hist {
		assert.False(t, h.Open)
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.True(t, CanTransition(StatusPending, StatusRejected))
	assert.True(t, CanTransition(StatusApproved, StatusCompleted))

	assert.False(t, CanTransition(StatusApproved, StatusRejected))
	assert.False(t, CanTransition(StatusRejected, StatusApproved))
	assert.False(t, CanTransition(StatusCompleted, StatusPending))
	assert.False(t, CanTransition(StatusRejected, StatusCompleted))
	assert.False(t, CanTransition(StatusApproved, StatusPending))
}
