package gap_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/gap"
)

func responsesFor(skillID string, total, incorrect int, confidence float64) []gap.Response {
	rs := make([]gap.Response, 0, total)
	for i := 0; i < total; i++ {
		rs = append(rs, gap.Response{
			QuestionID: fmt.Sprintf("%s-q%02d", skillID, i),
			SkillID:    skillID,
			Correct:    i >= incorrect,
			Confidence: confidence,
		})
	}
	return rs
}

func TestAnalyzeDeterminism(t *testing.T) {
	taxonomy := &gap.Taxonomy{
		CertificationRef: "AWS-SAA",
		Skills: []gap.Skill{
			{ID: "IAM", Domain: "security", ExamWeight: 0.30, Mandatory: true},
			{ID: "VPC", Domain: "networking", ExamWeight: 0.25},
			{ID: "S3", Domain: "storage", ExamWeight: 0.20},
		},
	}
	responses := append(responsesFor("IAM", 8, 3, 0.9), responsesFor("VPC", 6, 2, 0.4)...)
	responses = append(responses, responsesFor("S3", 5, 1, 0.7)...)

	first, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
		if err != nil {
			t.Fatalf("repeat analyze failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestSeverityOrderingByIncorrectFraction(t *testing.T) {
	// Identical exam weight, different incorrect fractions: the skill with
	// more incorrect answers must sort strictly first.
	taxonomy := &gap.Taxonomy{
		Skills: []gap.Skill{
			{ID: "alpha", ExamWeight: 0.2},
			{ID: "beta", ExamWeight: 0.2},
		},
	}
	responses := append(responsesFor("alpha", 10, 2, 0.5), responsesFor("beta", 10, 6, 0.5)...)

	gaps, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(gaps))
	}
	if gaps[0].SkillID != "beta" {
		t.Errorf("expected beta ranked first, got %s", gaps[0].SkillID)
	}
	if gaps[0].Severity <= gaps[1].Severity {
		t.Errorf("expected strictly greater severity: %f vs %f", gaps[0].Severity, gaps[1].Severity)
	}
}

func TestSeverityTieBrokenByExamWeight(t *testing.T) {
	taxonomy := &gap.Taxonomy{
		Skills: []gap.Skill{
			{ID: "route53", ExamWeight: 0.1},
			{ID: "lambda", ExamWeight: 0.1},
		},
	}
	// Same fractions and confidence: severities tie, exam weights tie,
	// skill ID breaks the tie.
	responses := append(responsesFor("route53", 4, 2, 0.5), responsesFor("lambda", 4, 2, 0.5)...)

	gaps, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(gaps) != 2 || gaps[0].SkillID != "lambda" {
		t.Fatalf("expected lambda before route53 on ID tiebreak, got %+v", gaps)
	}

	// Unequal exam weights with equal deficiency: exam weight feeds
	// severity directly, so the heavier skill scores higher outright.
	taxonomy.Skills[0].ExamWeight = 0.3
	gaps, err = gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if gaps[0].SkillID != "route53" {
		t.Fatalf("expected higher exam weight ranked first, got %s", gaps[0].SkillID)
	}
}

func TestConfidenceDelta(t *testing.T) {
	taxonomy := &gap.Taxonomy{
		Skills: []gap.Skill{{ID: "IAM", ExamWeight: 0.3}},
	}
	// 4 of 10 incorrect, reported confidence 0.9: delta = 0.9 - 0.6 = 0.3.
	responses := responsesFor("IAM", 10, 4, 0.9)

	gaps, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	got := gaps[0].ConfidenceDelta
	if got < 0.299 || got > 0.301 {
		t.Errorf("expected confidence delta ~0.3, got %f", got)
	}
}

func TestUnderconfidenceDoesNotInflateSeverity(t *testing.T) {
	taxonomy := &gap.Taxonomy{
		Skills: []gap.Skill{
			{ID: "a", ExamWeight: 0.2},
			{ID: "b", ExamWeight: 0.2},
		},
	}
	// Same incorrect fraction; a is underconfident, b overconfident.
	responses := append(responsesFor("a", 10, 2, 0.1), responsesFor("b", 10, 2, 0.99)...)

	gaps, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(gaps) != 2 || gaps[0].SkillID != "b" {
		t.Fatalf("expected overconfident skill ranked first, got %+v", gaps)
	}
	if gaps[1].ConfidenceDelta >= 0 {
		t.Errorf("expected negative delta for underconfident skill, got %f", gaps[1].ConfidenceDelta)
	}
}

func TestNoGapForMasteredSkill(t *testing.T) {
	taxonomy := &gap.Taxonomy{
		Skills: []gap.Skill{{ID: "S3", ExamWeight: 0.5}},
	}
	// All correct, confidence matches correctness: no deficiency.
	responses := responsesFor("S3", 5, 0, 1.0)

	gaps, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(gaps) != 0 {
		t.Errorf("expected no gaps for mastered skill, got %+v", gaps)
	}
}

func TestInsufficientData(t *testing.T) {
	taxonomy := &gap.Taxonomy{
		Skills: []gap.Skill{
			{ID: "IAM", ExamWeight: 0.3, Mandatory: true},
			{ID: "VPC", ExamWeight: 0.2},
		},
	}
	cfg := gap.DefaultConfig()
	cfg.MinResponses = 3

	_, err := gap.Analyze(responsesFor("IAM", 2, 1, 0.5), taxonomy, cfg)
	if !errors.Is(err, certflow.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if certflow.KindOf(err) != certflow.KindPermanent {
		t.Errorf("insufficient data must classify permanent, got %s", certflow.KindOf(err))
	}

	// Optional skills may be uncovered.
	_, err = gap.Analyze(responsesFor("IAM", 3, 1, 0.5), taxonomy, cfg)
	if err != nil {
		t.Fatalf("optional skill coverage should not be required: %v", err)
	}
}

func TestSourceQuestionIDs(t *testing.T) {
	taxonomy := &gap.Taxonomy{
		Skills: []gap.Skill{{ID: "IAM", ExamWeight: 0.3}},
	}
	responses := responsesFor("IAM", 4, 2, 0.8)

	gaps, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	want := []string{"IAM-q00", "IAM-q01", "IAM-q02", "IAM-q03"}
	if !reflect.DeepEqual(gaps[0].SourceQuestionIDs, want) {
		t.Errorf("expected sorted source IDs %v, got %v", want, gaps[0].SourceQuestionIDs)
	}
}

func TestExampleScenarioAWSSAA(t *testing.T) {
	// 20 responses, 6 incorrect all tagged IAM (exam weight 30%).
	taxonomy := &gap.Taxonomy{
		CertificationRef: "AWS-SAA",
		Skills: []gap.Skill{
			{ID: "IAM", Domain: "security", ExamWeight: 0.30, Mandatory: true},
			{ID: "EC2", Domain: "compute", ExamWeight: 0.25},
		},
	}
	responses := responsesFor("IAM", 12, 6, 0.7)
	responses = append(responses, responsesFor("EC2", 8, 0, 0.5)...)

	gaps, err := gap.Analyze(responses, taxonomy, gap.DefaultConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(gaps) == 0 {
		t.Fatal("expected at least one gap")
	}
	top := gaps[0]
	if top.SkillID != "IAM" {
		t.Errorf("expected IAM top-ranked, got %s", top.SkillID)
	}
	if top.Severity <= 0 {
		t.Errorf("expected positive severity, got %f", top.Severity)
	}
}

func TestBuildPlan(t *testing.T) {
	gaps := []gap.SkillGap{
		{SkillID: "IAM", Domain: "security", Severity: 0.62, ConfidenceDelta: 0.2},
		{SkillID: "VPC", Domain: "networking", Severity: 0.31, ConfidenceDelta: 0.4},
		{SkillID: "S3", Domain: "storage", Severity: 0.18, ConfidenceDelta: -0.1},
	}

	plan := gap.BuildPlan("AWS-SAA", gaps)
	if plan.CertificationRef != "AWS-SAA" {
		t.Errorf("unexpected certification ref %q", plan.CertificationRef)
	}
	if len(plan.Modules) != 3 {
		t.Fatalf("expected 3 modules, got %d", len(plan.Modules))
	}

	wantFocus := []gap.Focus{gap.FocusFundamentals, gap.FocusCalibration, gap.FocusReinforcement}
	for i, m := range plan.Modules {
		if m.Priority != i+1 {
			t.Errorf("module %d: expected priority %d, got %d", i, i+1, m.Priority)
		}
		if m.Focus != wantFocus[i] {
			t.Errorf("module %d: expected focus %s, got %s", i, wantFocus[i], m.Focus)
		}
	}
}
