package spaced_repetition

import "fmt"

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// Response time boundaries used by DeriveQuality
const (
	FastAnswerMs = 5000
	SlowAnswerMs = 10000
)

var qualityNames = [...]string{
	QualityBlackout:          "blackout",
	QualityIncorrect:         "incorrect",
	QualityIncorrectFamiliar: "incorrect_familiar",
	QualityCorrectDifficult:  "correct_difficult",
	QualityCorrectHesitation: "correct_hesitation",
	QualityPerfect:           "perfect",
}

func (q QualityResponse) String() string {
	if q >= QualityBlackout && q <= QualityPerfect {
		return qualityNames[q]
	}
	return fmt.Sprintf("QualityResponse(%d)", int(q))
}

// ClampQuality maps any integer into the 0..5 range
func ClampQuality(q int) QualityResponse {
	if q < int(QualityBlackout) {
		return QualityBlackout
	}
	if q > int(QualityPerfect) {
		return QualityPerfect
	}
	return QualityResponse(q)
}

// DeriveQuality grades an answer from correctness and response latency.
// Blackout and hint-assisted grades (0, 1) are never produced here.
func DeriveQuality(isCorrect bool, responseTimeMs *int) QualityResponse {
	if !isCorrect {
		return QualityIncorrectFamiliar
	}
	if responseTimeMs == nil || *responseTimeMs < 0 {
		return QualityCorrectHesitation
	}
	switch ms := *responseTimeMs; {
	case ms < FastAnswerMs:
		return QualityPerfect
	case ms < SlowAnswerMs:
		return QualityCorrectHesitation
	default:
		return QualityCorrectDifficult
	}
}
