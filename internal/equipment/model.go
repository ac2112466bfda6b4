package equipment

import "time"

// Condition は機材の状態評価（良い順）
type Condition string

const (
	CondNew     Condition = "NEW"
	CondGood    Condition = "GOOD"
	CondFair    Condition = "FAIR"
	CondPoor    Condition = "POOR"
	CondDamaged Condition = "DAMAGED"
)

// 良い方が大きい
var condRank = map[Condition]int{
	CondNew:     5,
	CondGood:    4,
	CondFair:    3,
	CondPoor:    2,
	CondDamaged: 1,
}

func (c Condition) Valid() bool { return condRank[c] != 0 }

// WorseThan: c が o より劣化しているか
func (c Condition) WorseThan(o Condition) bool {
	return condRank[c] != 0 && condRank[o] != 0 && condRank[c] < condRank[o]
}

// Status は機材の貸出可否
type Status string

const (
	StatusAvailable     Status = "AVAILABLE"
	StatusReserved      Status = "RESERVED"
	StatusInMaintenance Status = "IN_MAINTENANCE"
	StatusRetired       Status = "RETIRED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusInMaintenance, StatusRetired:
		return true
	}
	return false
}

// Equipment は equipment テーブルの1行を表す。
// Status の AVAILABLE⇔RESERVED 遷移は Reserve/Release だけが行う。
type Equipment struct {
	EquipmentID     string
	InternalID      string
	SerialNumber    *string
	Name            string
	Model           *string
	Brand           *string
	Type            string
	Condition       Condition
	Status          Status
	Location        *string
	AcquisitionDate *time.Time
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// 一覧検索条件
type Filter struct {
	Status     *Status
	Type       *string
	InternalID *string
}
