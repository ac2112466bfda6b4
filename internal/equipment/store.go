package equipment

import "context"

// Store は機材カタログと資産台帳の永続化層。
// 実装は store_mysql.go / store_memory.go の2種。
// Status の書き換えは必ず CAS（単一の check-and-set）で行うこと。
type Store interface {
	Insert(ctx context.Context, e *Equipment) error
	GetByID(ctx context.Context, equipmentID string) (*Equipment, error)
	GetByInternalID(ctx context.Context, internalID string) (*Equipment, error)
	List(ctx context.Context, f Filter) ([]Equipment, error)

	// Update は記述フィールドと condition のみ書き換える。status には触れない。
	Update(ctx context.Context, e *Equipment) error

	// SetStatus: from→to の CAS。現在値が from でなければ INVALID_STATE。
	SetStatus(ctx context.Context, equipmentID string, from, to Status) error

	// ---- 資産台帳 ----

	// Reserve: AVAILABLE→RESERVED の CAS。
	// AVAILABLE 以外（予約済・整備中・廃棄済）なら UNAVAILABLE。
	// 同一機材への同時呼び出しで成功するのは必ず1件だけ。
	Reserve(ctx context.Context, equipmentID string) error

	// Release: RESERVED→AVAILABLE の CAS。返却時の状態評価を新たな基準値として記録する。
	Release(ctx context.Context, equipmentID string, cond Condition) error

	ConditionOf(ctx context.Context, equipmentID string) (Condition, error)
	AvailabilityOf(ctx context.Context, equipmentID string) (Status, error)
}
