// Package captcha produces question/expected-answer/alternates triples at
// a configured difficulty and validates free-form answers.
package captcha

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Difficulty selects the question pool.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Challenge is a single generated captcha.
type Challenge struct {
	Question   string
	Expected   string
	Alternates []string
}

// Generate produces a new arithmetic/word-problem challenge for the given
// difficulty using an unseeded PRNG (each call should be independent and
// unpredictable — unlike the arbitration panel draw, this is not meant to
// be reproducible).
func Generate(d Difficulty) Challenge {
	switch d {
	case Hard:
		return generateHard()
	case Medium:
		return generateMedium()
	default:
		return generateEasy()
	}
}

func generateEasy() Challenge {
	a := rand.IntN(10) + 1
	b := rand.IntN(10) + 1
	sum := a + b
	return Challenge{
		Question: fmt.Sprintf("What is %d + %d?", a, b),
		Expected: strconv.Itoa(sum),
	}
}

func generateMedium() Challenge {
	a := rand.IntN(20) + 5
	b := rand.IntN(12) + 2
	product := a * b
	return Challenge{
		Question: fmt.Sprintf("What is %d * %d?", a, b),
		Expected: strconv.Itoa(product),
	}
}

func generateHard() Challenge {
	a := rand.IntN(50) + 10
	b := rand.IntN(20) + 5
	c := rand.IntN(10) + 1
	result := a + b*c
	return Challenge{
		Question: fmt.Sprintf("What is %d + %d * %d?", a, b, c),
		Expected: strconv.Itoa(result),
	}
}

// Normalize trims, lowercases. Numeric answers are additionally compared
// as numbers so "12" and "12.0" are equivalent; non-numeric answers
// compare literally after normalization, and the alternates list is
// matched the same way.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate reports whether answer satisfies the challenge (expected or
// any alternate), using numeric comparison when both sides parse as
// numbers and literal normalized comparison otherwise.
func Validate(c Challenge, answer string) bool {
	candidates := append([]string{c.Expected}, c.Alternates...)
	for _, want := range candidates {
		if matches(want, answer) {
			return true
		}
	}
	return false
}

func matches(want, got string) bool {
	nWant, nGot := Normalize(want), Normalize(got)
	if fWant, errW := strconv.ParseFloat(nWant, 64); errW == nil {
		if fGot, errG := strconv.ParseFloat(nGot, 64); errG == nil {
			return fWant == fGot
		}
	}
	return nWant == nGot
}
