package domain

import "fmt"

// Bucket classifies a card by how well it is known, using the ease-factor
// ranges the review UI exposes as filters.
type Bucket int

const (
	Blackout Bucket = iota // ease at the 1.3 floor
	Hard                   // ease below 1.8
	Medium                 // ease below 2.3
	Easy                   // ease below 2.8
	Perfect                // ease 2.8 and up
	Mastered               // 5+ repetitions with ease 2.5 and up
)

func (b Bucket) String() string {
	switch b {
	case Blackout:
		return "blackout"
	case Hard:
		return "hard"
	case Medium:
		return "medium"
	case Easy:
		return "easy"
	case Perfect:
		return "perfect"
	case Mastered:
		return "mastered"
	default:
		return fmt.Sprintf("Bucket(%d)", int(b))
	}
}

// masteredReps is the repetition streak needed before a high-ease card
// counts as mastered.
const masteredReps = 5

// BucketOf classifies a scheduling state into its ease bucket.
func BucketOf(s SchedulingState) Bucket {
	if s.Repetitions >= masteredReps && s.EaseFactor >= 2.5 {
		return Mastered
	}
	switch {
	case s.EaseFactor <= 1.3:
		return Blackout
	case s.EaseFactor < 1.8:
		return Hard
	case s.EaseFactor < 2.3:
		return Medium
	case s.EaseFactor < 2.8:
		return Easy
	default:
		return Perfect
	}
}
