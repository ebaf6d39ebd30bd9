package models

// Fixed code tables tagging reports with aggressor/victim descriptors.

type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex"`
}

type Region struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex"`
}

type Country struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Code string `json:"code" gorm:"uniqueIndex;size:2"`
	Name string `json:"name"`
}

// Keyword is the dynamic counterpart to the code tables: free-form group
// or campaign names entered by reviewers.
type Keyword struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Word string `json:"word" gorm:"uniqueIndex"`
}

// Association roles.
const (
	RoleAggressor = "aggressor"
	RoleVictim    = "victim"
)

// ReportKeywordAssociation links a report to one descriptor in a role.
// Kind names the table the value was drawn from.
type ReportKeywordAssociation struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ReportUID string `json:"report_uid" gorm:"index"`
	Role      string `json:"role"`
	Kind      string `json:"kind"` // keyword, category, region, country
	Value     string `json:"value"`
}
