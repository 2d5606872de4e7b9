package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/adapter"
	"github.com/certvine/certflow/api"
	"github.com/certvine/certflow/backoff"
	"github.com/certvine/certflow/client"
	"github.com/certvine/certflow/gap"
	"github.com/certvine/certflow/id"
	"github.com/certvine/certflow/instance"
	"github.com/certvine/certflow/orchestrator"
	"github.com/certvine/certflow/store/memory"
	"github.com/certvine/certflow/supervisor"
)

type stubGenerator struct{}

func (stubGenerator) GenerateAssessment(_ context.Context, req adapter.AssessmentRequest) (*adapter.Assessment, error) {
	return &adapter.Assessment{
		ID:               id.NewAssessmentID(),
		CertificationRef: req.CertificationRef,
		Questions:        []adapter.Question{{ID: "q1", SkillID: "iam", Prompt: "Which policy?"}},
	}, nil
}

type stubForms struct{}

func (stubForms) DeployForm(_ context.Context, a *adapter.Assessment) (*adapter.FormHandle, error) {
	return &adapter.FormHandle{ID: id.NewFormID(), ResultRef: "results/" + a.ID.String()}, nil
}
func (stubForms) ReleaseForm(context.Context, string) error { return nil }
func (stubForms) ValidateReference(ref string) error {
	if strings.TrimSpace(ref) == "" || strings.Contains(ref, "..") {
		return errors.New("malformed reference")
	}
	return nil
}
func (stubForms) FetchResults(context.Context, string) ([]gap.Response, error) {
	return []gap.Response{{QuestionID: "q1", SkillID: "iam", Correct: false, Confidence: 0.7}}, nil
}

type stubTaxonomies struct{}

func (stubTaxonomies) Taxonomy(_ context.Context, ref string) (*gap.Taxonomy, error) {
	return &gap.Taxonomy{
		CertificationRef: ref,
		Skills:           []gap.Skill{{ID: "iam", Domain: "security", ExamWeight: 0.3, Mandatory: true}},
	}, nil
}

type stubContent struct{ format string }

func (c stubContent) GenerateContent(context.Context, *gap.Plan) (*adapter.ContentRef, error) {
	return &adapter.ContentRef{ID: id.NewContentID(), Format: c.format, URL: "https://cdn.example.com/" + c.format}, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	forms := stubForms{}
	registry := orchestrator.NewStandardRegistry(orchestrator.Adapters{
		Generator:  stubGenerator{},
		Forms:      forms,
		Taxonomies: stubTaxonomies{},
		Slides:     stubContent{format: "slides"},
		Video:      stubContent{format: "video"},
	}, gap.DefaultConfig())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := orchestrator.New(memory.New(), registry, forms, nil, logger,
		orchestrator.WithSupervisorOptions(
			supervisor.WithBackoff(backoff.NewConstant(0)),
			supervisor.WithSleep(func(context.Context, time.Duration) error { return nil }),
		),
	)

	srv := httptest.NewServer(api.New(orch, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newServer(t)
	c := client.New(srv.URL)
	ctx := context.Background()

	started, err := c.Start(ctx, "learner-1", "AWS-SAA", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != instance.StatusSuspended {
		t.Errorf("expected suspended instance, got %s", started.Status)
	}

	got, err := c.Get(ctx, started.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != started.ID {
		t.Errorf("got %s, want %s", got.ID, started.ID)
	}

	instances, err := c.List(ctx, instance.ListOpts{Status: instance.StatusSuspended})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(instances) != 1 {
		t.Errorf("expected 1 suspended instance, got %d", len(instances))
	}

	done, err := c.Resume(ctx, started.ID, "results/abc")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if done.Status != instance.StatusCompleted {
		t.Errorf("expected completed instance, got %s", done.Status)
	}
}

func TestClientErrorMapping(t *testing.T) {
	srv := newServer(t)
	c := client.New(srv.URL)
	ctx := context.Background()

	_, err := c.Get(ctx, id.NewInstanceID())
	if !errors.Is(err, certflow.ErrInstanceNotFound) {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}

	started, err := c.Start(ctx, "learner-1", "AWS-SAA", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Resume(ctx, started.ID, "../escape")
	if err == nil {
		t.Fatal("expected invalid reference to fail")
	}
	if got := certflow.KindOf(err); got != certflow.KindInvalidResume {
		t.Errorf("expected invalid_resume_request kind, got %s", got)
	}

	_, err = c.Advance(ctx, started.ID)
	if err == nil {
		t.Fatal("expected advance on suspended instance to fail")
	}
	if got := certflow.KindOf(err); got != certflow.KindPreconditionFailed {
		t.Errorf("expected precondition_failed kind, got %s", got)
	}
}
