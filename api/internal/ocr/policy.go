package ocr

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// LowConfidence is the level below which the pipeline warns that the text
// may be misread. It never blocks the job.
const LowConfidence = 0.6

// Advice returns a user-facing note about a low-confidence read, or "".
func Advice(t Text) string {
	switch {
	case strings.TrimSpace(t.Content) == "":
		return "No text was recognized"
	case t.Confidence < LowConfidence:
		return fmt.Sprintf("Text read with low confidence (%.0f%%); results may be off", t.Confidence*100)
	}
	return ""
}

// MathScore is the share of characters that look like math notation,
// scaled so that a typical equation scores close to 1.
func MathScore(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var total, mathy float64
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.IsDigit(r):
			mathy++
		case strings.ContainsRune("=+-*/^()[]×÷−²³√π∫≤≥<>.", r):
			mathy++
		}
	}
	if total == 0 {
		return 0
	}
	score := 2 * mathy / total
	if strings.ContainsRune(s, '=') {
		score += 0.2
	}
	return math.Min(1, score)
}

// EstimateConfidence scores text from engines that report no confidence:
// empty text, replacement runes and control characters pull it down.
func EstimateConfidence(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var total, garbage, letters float64
	for _, r := range s {
		total++
		if r == '�' || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			garbage++
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters++
		}
	}
	score := 0.9
	if g := garbage / total; g > 0.01 {
		score -= math.Min(0.5, g*50)
	}
	if letters/total < 0.3 {
		score -= 0.3
	}
	if total < 3 {
		score -= 0.3
	}
	return math.Max(0, score)
}

func rank(t Text) float64 {
	return t.Confidence + 0.2*MathScore(t.Content)
}
