package models

import "strings"

// Attack categories as delivered by the upstream feed.
const (
	CategoryTechnique = "attack-pattern"
	CategoryMalware   = "malware"
	CategoryTool      = "tool"
)

type Attack struct {
	UID         string `json:"uid" gorm:"primaryKey;column:uid"`
	TID         string `json:"tid" gorm:"column:tid;index"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"default:attack-pattern"`
	Inactive    bool   `json:"inactive"`
}

// ParentTID returns the public id of the parent technique, or "" for
// top-level techniques. Lineage is derived from the tid, never stored.
func (a Attack) ParentTID() string {
	i := strings.LastIndex(a.TID, ".")
	if i < 0 {
		return ""
	}
	return a.TID[:i]
}

// IsSubTechnique reports whether the attack is a sub-technique (Txxxx.yyy).
func (a Attack) IsSubTechnique() bool {
	return strings.Contains(a.TID, ".")
}

type SimilarWord struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AttackUID string `json:"attack_uid" gorm:"index"`
	Word      string `json:"word"`
}

type RegexPattern struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AttackUID string `json:"attack_uid" gorm:"index"`
	Pattern   string `json:"pattern"`
}
