package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/certvine/certflow/adapter"
	"github.com/certvine/certflow/gap"
	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/stage"
)

// Adapters bundles the external collaborators the standard registry
// wires into stage handlers.
type Adapters struct {
	Generator  adapter.AssessmentGenerator
	Forms      adapter.FormService
	Taxonomies adapter.TaxonomyProvider

	// Slides and Video render the two learning artifacts produced from
	// the remediation plan. They run concurrently.
	Slides adapter.ContentGenerator
	Video  adapter.ContentGenerator
}

// Summary is the final payload entry, a digest of the whole run.
type Summary struct {
	CertificationRef string    `json:"certification_ref"`
	QuestionCount    int       `json:"question_count"`
	GapCount         int       `json:"gap_count"`
	ModuleCount      int       `json:"module_count"`
	ContentRefs      []string  `json:"content_refs"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// NewStandardRegistry builds the stage registry for the certification
// prep workflow. Every non-terminal stage except the suspend point gets
// a handler; the suspend point's handler runs only after resume.
func NewStandardRegistry(a Adapters, cfg gap.Config) *stage.Registry {
	r := stage.NewRegistry()

	r.MustRegister(stage.Definition{
		Stage:     instance.StageRequested,
		OutputKey: instance.KeyAssessment,
		Handler:   generateAssessment(a.Generator),
	})
	r.MustRegister(stage.Definition{
		Stage:      instance.StageAssessmentGenerated,
		OutputKey:  instance.KeyFormDeployment,
		Handler:    deployForm(a.Forms),
		Compensate: releaseDeployedForm(a.Forms),
	})
	// Deployment already happened on the way in; this stage only hands
	// the instance over to the wait.
	r.MustRegister(stage.Definition{
		Stage: instance.StageResourcesDeployed,
	})
	r.MustRegister(stage.Definition{
		Stage:      instance.StageAwaitingExternalInput,
		OutputKey:  instance.KeyResponses,
		Handler:    fetchResults(a.Forms),
		Compensate: releaseDeployedForm(a.Forms),
	})
	r.MustRegister(stage.Definition{
		Stage:     instance.StageResultsRetrieved,
		OutputKey: instance.KeyGapAnalysis,
		Handler:   analyzeGaps(a.Taxonomies, cfg),
	})
	r.MustRegister(stage.Definition{
		Stage:     instance.StageGapsAnalyzed,
		OutputKey: instance.KeyPlan,
		Handler:   buildPlan(),
	})
	r.MustRegister(stage.Definition{
		Stage:     instance.StagePlanGenerated,
		OutputKey: instance.KeyContent,
		Handler:   generateContent(a.Slides, a.Video),
	})
	r.MustRegister(stage.Definition{
		Stage:     instance.StageContentGenerated,
		OutputKey: instance.KeySummary,
		Handler:   buildSummary(),
	})

	return r
}

func generateAssessment(gen adapter.AssessmentGenerator) stage.Handler {
	return func(ctx context.Context, inst *instance.Instance) (json.RawMessage, error) {
		assessment, err := gen.GenerateAssessment(ctx, adapter.AssessmentRequest{
			CertificationRef: inst.CertificationRef,
			OwnerRef:         inst.OwnerRef,
			Parameters:       inst.Parameters,
		})
		if err != nil {
			return nil, fmt.Errorf("generate assessment: %w", err)
		}
		return json.Marshal(assessment)
	}
}

func deployForm(forms adapter.FormService) stage.Handler {
	return func(ctx context.Context, inst *instance.Instance) (json.RawMessage, error) {
		var assessment adapter.Assessment
		if err := inst.Payload.Decode(instance.KeyAssessment, &assessment); err != nil {
			return nil, err
		}
		handle, err := forms.DeployForm(ctx, &assessment)
		if err != nil {
			return nil, fmt.Errorf("deploy form: %w", err)
		}
		return json.Marshal(handle)
	}
}

// releaseDeployedForm tears down the external form recorded in the
// payload. It is a no-op when no deployment was recorded.
func releaseDeployedForm(forms adapter.FormService) stage.Compensation {
	return func(ctx context.Context, inst *instance.Instance) error {
		var handle adapter.FormHandle
		if err := inst.Payload.Decode(instance.KeyFormDeployment, &handle); err != nil {
			return nil
		}
		if err := forms.ReleaseForm(ctx, handle.ResultRef); err != nil {
			return fmt.Errorf("release form %s: %w", handle.ID, err)
		}
		return nil
	}
}

func fetchResults(forms adapter.FormService) stage.Handler {
	return func(ctx context.Context, inst *instance.Instance) (json.RawMessage, error) {
		var input ResumeInput
		if err := inst.Payload.Decode(instance.KeyResumeInput, &input); err != nil {
			return nil, err
		}
		responses, err := forms.FetchResults(ctx, input.Reference)
		if err != nil {
			return nil, fmt.Errorf("fetch results: %w", err)
		}
		return json.Marshal(responses)
	}
}

func analyzeGaps(taxonomies adapter.TaxonomyProvider, cfg gap.Config) stage.Handler {
	return func(ctx context.Context, inst *instance.Instance) (json.RawMessage, error) {
		var responses []gap.Response
		if err := inst.Payload.Decode(instance.KeyResponses, &responses); err != nil {
			return nil, err
		}
		taxonomy, err := taxonomies.Taxonomy(ctx, inst.CertificationRef)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
		gaps, err := gap.Analyze(responses, taxonomy, cfg)
		if err != nil {
			return nil, err
		}
		return json.Marshal(gaps)
	}
}

func buildPlan() stage.Handler {
	return func(_ context.Context, inst *instance.Instance) (json.RawMessage, error) {
		var gaps []gap.SkillGap
		if err := inst.Payload.Decode(instance.KeyGapAnalysis, &gaps); err != nil {
			return nil, err
		}
		return json.Marshal(gap.BuildPlan(inst.CertificationRef, gaps))
	}
}

// generateContent renders slides and video concurrently. A failure in
// either cancels the other through the group context.
func generateContent(slides, video adapter.ContentGenerator) stage.Handler {
	return func(ctx context.Context, inst *instance.Instance) (json.RawMessage, error) {
		var plan gap.Plan
		if err := inst.Payload.Decode(instance.KeyPlan, &plan); err != nil {
			return nil, err
		}

		refs := make([]adapter.ContentRef, 2)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			ref, err := slides.GenerateContent(gctx, &plan)
			if err != nil {
				return fmt.Errorf("generate slides: %w", err)
			}
			refs[0] = *ref
			return nil
		})
		g.Go(func() error {
			ref, err := video.GenerateContent(gctx, &plan)
			if err != nil {
				return fmt.Errorf("generate video: %w", err)
			}
			refs[1] = *ref
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return json.Marshal(refs)
	}
}

func buildSummary() stage.Handler {
	return func(_ context.Context, inst *instance.Instance) (json.RawMessage, error) {
		var assessment adapter.Assessment
		if err := inst.Payload.Decode(instance.KeyAssessment, &assessment); err != nil {
			return nil, err
		}
		var gaps []gap.SkillGap
		if err := inst.Payload.Decode(instance.KeyGapAnalysis, &gaps); err != nil {
			return nil, err
		}
		var plan gap.Plan
		if err := inst.Payload.Decode(instance.KeyPlan, &plan); err != nil {
			return nil, err
		}
		var content []adapter.ContentRef
		if err := inst.Payload.Decode(instance.KeyContent, &content); err != nil {
			return nil, err
		}

		refs := make([]string, 0, len(content))
		for _, c := range content {
			refs = append(refs, c.URL)
		}

		return json.Marshal(Summary{
			CertificationRef: inst.CertificationRef,
			QuestionCount:    len(assessment.Questions),
			GapCount:         len(gaps),
			ModuleCount:      len(plan.Modules),
			ContentRefs:      refs,
			GeneratedAt:      time.Now().UTC(),
		})
	}
}
