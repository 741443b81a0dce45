// Package scorer implements the Sampler & Scorer (spec §4.7): temperature
// scaled sampling over a prediction list, Brier and logarithmic proper
// scoring of a user's guess, a Shannon-entropy difficulty classifier, a
// reward calculation, and a Lichess-style centipawn -> win-probability ->
// per-move accuracy -> harmonic-mean pipeline.
//
// Every function here is pure: no I/O, no shared state, no network. The
// accuracy pipeline in particular is independent of the policy network
// entirely, operating only on caller-supplied centipawn evaluations, the
// way the retrieved EloInsight analyzer classifies moves from engine
// centipawn-loss rather than from its own model.
package scorer

import (
	"math"
	"math/rand"

	"github.com/maia-engine/predictor/internal/decoder"
)

// Named temperature presets (spec §4.7).
const (
	PresetDeterministic = 0.1
	PresetConservative  = 0.7
	PresetRealistic     = 1.0
	PresetExploratory   = 1.3
	PresetRandom        = 2.0
)

const deterministicThreshold = 0.01

// SampleMove draws one move from predictions at temperature. Below
// deterministicThreshold it always returns the first (highest-probability)
// entry. rng lets callers inject a seeded source for reproducible tests;
// pass rand.New(rand.NewSource(...)) or a shared *rand.Rand in production.
func SampleMove(predictions []decoder.Prediction, temperature float64, rng *rand.Rand) (decoder.Prediction, bool) {
	if len(predictions) == 0 {
		return decoder.Prediction{}, false
	}
	if temperature < deterministicThreshold {
		return predictions[0], true
	}

	weights := make([]float64, len(predictions))
	var sum float64
	for i, p := range predictions {
		w := math.Exp(math.Log(math.Max(p.Probability, 1e-10)) / temperature)
		weights[i] = w
		sum += w
	}
	if sum <= 0 {
		return predictions[0], true
	}

	u := rng.Float64()
	var cumulative float64
	for i, w := range weights {
		cumulative += w / sum
		if cumulative >= u {
			return predictions[i], true
		}
	}
	return predictions[len(predictions)-1], true
}

// BrierScore computes the Brier score contribution of a single outcome:
// the sum of squared errors between each listed probability and the
// indicator of whether that move was the one actually played, plus a
// penalty of 1 if the actual move never appears in the list.
func BrierScore(predictions []decoder.Prediction, actualUCI string) float64 {
	var sum float64
	found := false
	for _, p := range predictions {
		indicator := 0.0
		if p.UCI == actualUCI {
			indicator = 1.0
			found = true
		}
		diff := p.Probability - indicator
		sum += diff * diff
	}
	if !found {
		sum += 1
	}
	return sum
}

const minLogScoreProbability = 0.001

// LogScore computes -log(p_actual), clamping p_actual to a minimum of
// 0.001 (and using that floor outright if the actual move is absent).
func LogScore(predictions []decoder.Prediction, actualUCI string) float64 {
	p := minLogScoreProbability
	for _, pred := range predictions {
		if pred.UCI == actualUCI {
			p = math.Max(pred.Probability, minLogScoreProbability)
			break
		}
	}
	return -math.Log(p)
}

// Difficulty is a classification of how hard a position's best move is to
// find, derived from the Shannon entropy of the prediction distribution.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Classify buckets a prediction list's entropy into a difficulty label.
func Classify(predictions []decoder.Prediction) Difficulty {
	h := entropy(predictions)
	switch {
	case h < 1.0:
		return DifficultyEasy
	case h < 1.8:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

func entropy(predictions []decoder.Prediction) float64 {
	var h float64
	for _, p := range predictions {
		if p.Probability <= 0 {
			continue
		}
		h -= p.Probability * math.Log2(p.Probability)
	}
	return h
}

// Reward is the result of comparing a user's picked move against the move
// actually played.
type Reward struct {
	Base       float64
	Bonus      float64
	Total      float64
	ProbActual float64
	ProbUser   float64
}

// CalculateReward scores a user's pick userUCI against the move actually
// played, actualUCI, using the probabilities in predictions.
func CalculateReward(predictions []decoder.Prediction, userUCI, actualUCI string) Reward {
	probOf := func(uci string) float64 {
		for _, p := range predictions {
			if p.UCI == uci {
				return p.Probability
			}
		}
		return 0
	}

	probActual := probOf(actualUCI)
	probUser := probOf(userUCI)
	correct := userUCI == actualUCI

	base := 0.0
	if correct {
		base = 50
	}

	bonus := 10 * probUser
	if correct {
		bonus = 50 * probActual
	}

	return Reward{
		Base:       base,
		Bonus:      bonus,
		Total:      base + bonus,
		ProbActual: probActual,
		ProbUser:   probUser,
	}
}

const (
	winProbK       = -0.00368208
	accuracyK      = -0.04354
	accuracyA      = 103.1668
	accuracyB      = 3.1669
	centipawnClamp = 1000
)

// WinProbability converts a centipawn evaluation into a win probability in
// [0, 100], clamping the input to [-1000, 1000] first.
func WinProbability(centipawns float64) float64 {
	c := clamp(centipawns, -centipawnClamp, centipawnClamp)
	return 50 + 50*(2/(1+math.Exp(winProbK*c))-1)
}

// NegateForBlack flips the sign of a centipawn evaluation for Black's
// move, per spec §4.7 ("when scoring Black's move, negate centipawns
// before conversion").
func NegateForBlack(centipawns float64) float64 {
	return -centipawns
}

// MoveAccuracy derives a 0-100 accuracy score from the win-probability swing
// between winBefore and winAfter (both already from the mover's
// perspective). A move that loses no win probability scores exactly 100.
func MoveAccuracy(winBefore, winAfter float64) float64 {
	drop := winBefore - winAfter
	if drop <= 0 {
		return 100
	}
	a := accuracyA*math.Exp(accuracyK*drop) - accuracyB
	return clamp(a, 0, 100)
}

// QualityBucket classifies a move's accuracy into a Lichess-style label.
// "brilliant" is reserved for the engine's own best move played with
// accuracy >= 99.
func QualityBucket(accuracy float64, isBestMove bool) string {
	switch {
	case isBestMove && accuracy >= 99:
		return "brilliant"
	case accuracy >= 95:
		return "great"
	case accuracy >= 80:
		return "good"
	case accuracy >= 60:
		return "book"
	case accuracy >= 40:
		return "inaccuracy"
	case accuracy >= 20:
		return "mistake"
	default:
		return "blunder"
	}
}

// GameAccuracy is the harmonic mean of per-move accuracies, excluding zero
// entries (spec §4.7).
func GameAccuracy(accuracies []float64) float64 {
	var reciprocalSum float64
	var n int
	for _, a := range accuracies {
		if a == 0 {
			continue
		}
		reciprocalSum += 1 / a
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(n) / reciprocalSum
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
