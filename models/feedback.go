package models

// Sources of a training example.
const (
	SourceCurated  = "curated"  // came with the upstream feed (example_uses)
	SourceReviewer = "reviewer" // derived from a review action
)

// TruePositive holds sentences known to describe the technique: curated
// example uses from the knowledge feed plus user-confirmed predictions.
type TruePositive struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	AttackUID  string  `json:"attack_uid" gorm:"index"`
	SentenceID *string `json:"sentence_id" gorm:"index"`
	Text       string  `json:"text"`
	Source     string  `json:"source" gorm:"default:reviewer"`
}

// FalseNegative holds sentences a reviewer mapped that the model missed.
// They act as positives at train time.
type FalseNegative struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	AttackUID  string  `json:"attack_uid" gorm:"index"`
	SentenceID *string `json:"sentence_id" gorm:"index"`
	Text       string  `json:"text"`
}

// FalsePositive holds sentences a reviewer rejected that the model
// predicted; they seed the negative class.
type FalsePositive struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	AttackUID  string  `json:"attack_uid" gorm:"index"`
	SentenceID *string `json:"sentence_id" gorm:"index"`
	Text       string  `json:"text"`
}

// TrueNegative is the global pool of sentences explicitly not describing
// any technique.
type TrueNegative struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	SentenceID *string `json:"sentence_id" gorm:"index"`
	Text       string  `json:"text"`
}
