// Package gap implements the multi-dimensional gap-scoring engine: given
// assessment responses and a certification taxonomy it produces
// severity-ranked skill gaps and a remediation plan.
//
// Analyze is a pure function. It performs no I/O, holds no state, and its
// output ordering and severity values are deterministic for fixed inputs;
// all persistence is the orchestrator's responsibility.
package gap

import (
	"fmt"
	"sort"

	"github.com/certvine/certflow"
)

// Response is one answered assessment question, tagged with the skill it
// exercises and the learner's self-reported confidence in [0,1].
type Response struct {
	QuestionID string  `json:"question_id"`
	SkillID    string  `json:"skill_id"`
	Correct    bool    `json:"correct"`
	Confidence float64 `json:"confidence"`
}

// Skill is one taxonomy entry. ExamWeight is the skill's share of the
// certification exam in [0,1]. Mandatory skills must be covered by at
// least Config.MinResponses tagged responses.
type Skill struct {
	ID         string  `json:"id"`
	Domain     string  `json:"domain"`
	ExamWeight float64 `json:"exam_weight"`
	Mandatory  bool    `json:"mandatory"`
}

// Taxonomy is the skill breakdown of one certification.
type Taxonomy struct {
	CertificationRef string  `json:"certification_ref"`
	Skills           []Skill `json:"skills"`
}

// SkillGap is a scored deficiency in one taxonomy skill.
type SkillGap struct {
	SkillID string `json:"skill_id"`
	Domain  string `json:"domain"`
	// Severity is the combined score in [0,1]; higher means a larger,
	// more exam-relevant deficiency.
	Severity float64 `json:"severity"`
	// ConfidenceDelta is mean reported confidence minus observed
	// correctness. Positive values capture overconfidence, negative
	// values underconfidence.
	ConfidenceDelta float64 `json:"confidence_delta"`
	// SourceQuestionIDs lists the responses that contributed to this gap,
	// sorted. Always non-empty.
	SourceQuestionIDs []string `json:"source_question_ids"`
}

// Config holds the scoring parameters.
type Config struct {
	// MinResponses is the minimum number of tagged responses required for
	// every mandatory skill.
	MinResponses int
	// WeightIncorrect scales the fraction of incorrect answers.
	WeightIncorrect float64
	// WeightExam scales the skill's exam weight.
	WeightExam float64
	// WeightOverconfidence scales the positive part of the confidence delta.
	WeightOverconfidence float64
}

// DefaultConfig returns the default scoring parameters. The three weights
// sum to 1 so severity stays within [0,1].
func DefaultConfig() Config {
	return Config{
		MinResponses:         1,
		WeightIncorrect:      0.5,
		WeightExam:           0.3,
		WeightOverconfidence: 0.2,
	}
}

// Analyze scores responses against taxonomy and returns skill gaps sorted
// by descending severity, ties broken by descending exam weight, then by
// skill ID. Skills with no observed deficiency (nothing incorrect and no
// overconfidence) produce no gap.
//
// Fails with a permanent InsufficientData error when any mandatory skill
// has fewer than cfg.MinResponses tagged responses.
func Analyze(responses []Response, taxonomy *Taxonomy, cfg Config) ([]SkillGap, error) {
	if taxonomy == nil {
		return nil, certflow.Permanent("gap.analyze", fmt.Errorf("nil taxonomy"))
	}
	if cfg.MinResponses <= 0 {
		cfg.MinResponses = 1
	}

	bySkill := make(map[string][]Response, len(taxonomy.Skills))
	for _, r := range responses {
		bySkill[r.SkillID] = append(bySkill[r.SkillID], r)
	}

	// Coverage check before any scoring: insufficient data is a
	// business-rule failure, not a retryable condition.
	for _, skill := range taxonomy.Skills {
		if skill.Mandatory && len(bySkill[skill.ID]) < cfg.MinResponses {
			return nil, certflow.Permanent("gap.analyze",
				fmt.Errorf("skill %q has %d tagged responses, need %d: %w",
					skill.ID, len(bySkill[skill.ID]), cfg.MinResponses, certflow.ErrInsufficientData))
		}
	}

	gaps := make([]SkillGap, 0, len(taxonomy.Skills))
	weights := make(map[string]float64, len(taxonomy.Skills))

	// Iterate the taxonomy in declared order so float accumulation is
	// identical across calls.
	for _, skill := range taxonomy.Skills {
		tagged := bySkill[skill.ID]
		if len(tagged) == 0 {
			continue
		}
		weights[skill.ID] = skill.ExamWeight

		incorrect := 0
		confidenceSum := 0.0
		questionIDs := make([]string, 0, len(tagged))
		for _, r := range tagged {
			if !r.Correct {
				incorrect++
			}
			confidenceSum += r.Confidence
			questionIDs = append(questionIDs, r.QuestionID)
		}

		fracIncorrect := float64(incorrect) / float64(len(tagged))
		fracCorrect := 1 - fracIncorrect
		delta := confidenceSum/float64(len(tagged)) - fracCorrect

		// Fully correct and not overconfident: no deficiency to report.
		if incorrect == 0 && delta <= 0 {
			continue
		}

		overconfidence := delta
		if overconfidence < 0 {
			overconfidence = 0
		}

		severity := cfg.WeightIncorrect*fracIncorrect +
			cfg.WeightExam*skill.ExamWeight +
			cfg.WeightOverconfidence*overconfidence

		sort.Strings(questionIDs)

		gaps = append(gaps, SkillGap{
			SkillID:           skill.ID,
			Domain:            skill.Domain,
			Severity:          severity,
			ConfidenceDelta:   delta,
			SourceQuestionIDs: questionIDs,
		})
	}

	sort.Slice(gaps, func(a, b int) bool {
		if gaps[a].Severity != gaps[b].Severity {
			return gaps[a].Severity > gaps[b].Severity
		}
		if weights[gaps[a].SkillID] != weights[gaps[b].SkillID] {
			return weights[gaps[a].SkillID] > weights[gaps[b].SkillID]
		}
		return gaps[a].SkillID < gaps[b].SkillID
	})

	return gaps, nil
}
