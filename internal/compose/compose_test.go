package compose_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mxn2020/prompt-verse-io/internal/compose"
	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/internal/prompts"
	"github.com/mxn2020/prompt-verse-io/pkg/cache"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

var testOwner = uuid.MustParse("11111111-2222-3333-4444-555555555555")

var (
	greetingID  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	signatureID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
)

// moduleStore satisfies modules.System for the methods composition uses.
type moduleStore struct {
	modules.System

	mu        sync.Mutex
	snapshots int
	recorded  []uuid.UUID
	snapshot  func() (*composition.Snapshot, error)
	recordErr error
}

func (s *moduleStore) Snapshot(context.Context, uuid.UUID) (*composition.Snapshot, error) {
	s.mu.Lock()
	s.snapshots++
	s.mu.Unlock()
	return s.snapshot()
}

func (s *moduleStore) RecordUsage(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, ids...)
	return s.recordErr
}

type promptStore struct {
	prompts.System

	prompt   *prompts.Prompt
	recorded int
}

func (s *promptStore) Find(_ context.Context, _, id uuid.UUID) (*prompts.Prompt, error) {
	if s.prompt == nil || s.prompt.ID != id {
		return nil, prompts.ErrNotFound
	}
	return s.prompt, nil
}

func (s *promptStore) RecordUsage(context.Context, uuid.UUID, uuid.UUID) error {
	s.recorded++
	return nil
}

func library(t *testing.T) func() (*composition.Snapshot, error) {
	t.Helper()
	snap, err := composition.NewSnapshot(composition.KeyByName,
		composition.Module{
			ID:                greetingID.String(),
			Name:              "greeting",
			Content:           "Hello {{user}}!",
			DeclaredVariables: []string{"user"},
		},
		composition.Module{
			ID:      signatureID.String(),
			Name:    "signature",
			Content: "Regards, {{company}}",
		},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return func() (*composition.Snapshot, error) { return snap, nil }
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCompose(t *testing.T) {
	mods := &moduleStore{snapshot: library(t)}
	sys := compose.New(mods, &promptStore{}, nil, composition.Limits{}, discard())

	resp, err := sys.Compose(context.Background(), testOwner, compose.Request{
		Template: "{{greeting}} {{signature}}",
		Bindings: composition.Bindings{"user": "Ada"},
		Required: []string{"company"},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if resp.Result.Output != "Hello Ada! Regards, {{company}}" {
		t.Errorf("Output = %q", resp.Result.Output)
	}
	if !slices.Equal(resp.Result.ExpandedModules, []string{greetingID.String(), signatureID.String()}) {
		t.Errorf("ExpandedModules = %v", resp.Result.ExpandedModules)
	}
	if !resp.Blocking {
		t.Error("Blocking = false, want true for unbound required company")
	}
	if resp.Cached {
		t.Error("Cached = true on first call")
	}
	if resp.PromptID != nil {
		t.Errorf("PromptID = %v, want nil", resp.PromptID)
	}
}

func TestComposeValidation(t *testing.T) {
	sys := compose.New(&moduleStore{snapshot: library(t)}, &promptStore{}, nil, composition.Limits{}, discard())

	tests := []struct {
		name string
		req  compose.Request
	}{
		{"empty template", compose.Request{}},
		{"bad required name", compose.Request{Template: "x", Required: []string{"first name"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sys.Compose(context.Background(), testOwner, tt.req)
			if !errors.Is(err, compose.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestComposeStructuralErrors(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		mods := &moduleStore{snapshot: func() (*composition.Snapshot, error) {
			return composition.NewSnapshot(composition.KeyByName,
				composition.Module{Name: "a", Content: "{{b}}"},
				composition.Module{Name: "b", Content: "{{a}}"},
			)
		}}
		sys := compose.New(mods, &promptStore{}, nil, composition.Limits{}, discard())

		_, err := sys.Compose(context.Background(), testOwner, compose.Request{Template: "{{a}}"})
		if !errors.Is(err, composition.ErrCycle) {
			t.Fatalf("err = %v, want ErrCycle", err)
		}
		if compose.MapHTTPStatus(err) != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", compose.MapHTTPStatus(err))
		}
	})

	t.Run("depth", func(t *testing.T) {
		mods := &moduleStore{snapshot: func() (*composition.Snapshot, error) {
			return composition.NewSnapshot(composition.KeyByName,
				composition.Module{Name: "a", Content: "{{b}}"},
				composition.Module{Name: "b", Content: "{{c}}"},
				composition.Module{Name: "c", Content: "end"},
			)
		}}
		sys := compose.New(mods, &promptStore{}, nil, composition.Limits{MaxDepth: 1}, discard())

		_, err := sys.Compose(context.Background(), testOwner, compose.Request{Template: "{{a}}"})
		if !errors.Is(err, composition.ErrDepthExceeded) {
			t.Errorf("err = %v, want ErrDepthExceeded", err)
		}
	})

	t.Run("expansion budget", func(t *testing.T) {
		mods := &moduleStore{snapshot: func() (*composition.Snapshot, error) {
			return composition.NewSnapshot(composition.KeyByName,
				composition.Module{Name: "a", Content: "{{b}}{{b}}{{b}}"},
				composition.Module{Name: "b", Content: "{{c}}{{c}}{{c}}"},
				composition.Module{Name: "c", Content: "x"},
			)
		}}
		sys := compose.New(mods, &promptStore{}, nil, composition.Limits{MaxExpansions: 10}, discard())

		_, err := sys.Compose(context.Background(), testOwner, compose.Request{Template: "{{a}}"})
		if !errors.Is(err, composition.ErrBudget) {
			t.Fatalf("err = %v, want ErrBudget", err)
		}
		if compose.MapHTTPStatus(err) != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", compose.MapHTTPStatus(err))
		}
	})

	t.Run("library error", func(t *testing.T) {
		mods := &moduleStore{snapshot: func() (*composition.Snapshot, error) {
			return nil, fmt.Errorf("%w: cycle", modules.ErrComposition)
		}}
		sys := compose.New(mods, &promptStore{}, nil, composition.Limits{}, discard())

		_, err := sys.Compose(context.Background(), testOwner, compose.Request{Template: "x"})
		if compose.MapHTTPStatus(err) != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", compose.MapHTTPStatus(err))
		}
	})
}

func TestComposeCache(t *testing.T) {
	content := "Hello {{user}}!"
	mods := &moduleStore{}
	mods.snapshot = func() (*composition.Snapshot, error) {
		return composition.NewSnapshot(composition.KeyByName,
			composition.Module{ID: greetingID.String(), Name: "greeting", Content: content},
		)
	}
	sys := compose.New(mods, &promptStore{}, cache.Memory(time.Minute), composition.Limits{}, discard())

	req := compose.Request{
		Template: "{{greeting}}",
		Bindings: composition.Bindings{"user": "Ada"},
	}

	first, err := sys.Compose(context.Background(), testOwner, req)
	if err != nil {
		t.Fatalf("first Compose: %v", err)
	}
	if first.Cached {
		t.Error("first response should not be cached")
	}

	second, err := sys.Compose(context.Background(), testOwner, req)
	if err != nil {
		t.Fatalf("second Compose: %v", err)
	}
	if !second.Cached {
		t.Error("second response should be served from cache")
	}
	if second.Result.Output != first.Result.Output {
		t.Errorf("cached Output = %q, want %q", second.Result.Output, first.Result.Output)
	}

	t.Run("library edit changes the key", func(t *testing.T) {
		content = "Hi {{user}}."

		resp, err := sys.Compose(context.Background(), testOwner, req)
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		if resp.Cached {
			t.Error("response after edit should not be cached")
		}
		if resp.Result.Output != "Hi Ada." {
			t.Errorf("Output = %q, want %q", resp.Result.Output, "Hi Ada.")
		}
	})

	t.Run("owner is part of the key", func(t *testing.T) {
		resp, err := sys.Compose(context.Background(), uuid.New(), req)
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		if resp.Cached {
			t.Error("another owner should not hit the cache")
		}
	})
}

func TestComposePrompt(t *testing.T) {
	prompt := &prompts.Prompt{
		ID:                uuid.New(),
		OwnerID:           testOwner,
		Title:             "Support",
		Content:           "{{greeting}} {{signature}} {{ticket}}",
		RequiredVariables: []string{"ticket"},
	}

	t.Run("merges required and records usage", func(t *testing.T) {
		mods := &moduleStore{snapshot: library(t)}
		store := &promptStore{prompt: prompt}
		sys := compose.New(mods, store, nil, composition.Limits{}, discard())

		resp, err := sys.ComposePrompt(context.Background(), testOwner, prompt.ID, compose.PromptRequest{
			Bindings: composition.Bindings{"user": "Ada", "ticket": "42"},
			Required: []string{"company", "ticket"},
			Record:   true,
		})
		if err != nil {
			t.Fatalf("ComposePrompt: %v", err)
		}

		if resp.Result.Output != "Hello Ada! Regards, {{company}} 42" {
			t.Errorf("Output = %q", resp.Result.Output)
		}
		if resp.PromptID == nil || *resp.PromptID != prompt.ID {
			t.Errorf("PromptID = %v, want %v", resp.PromptID, prompt.ID)
		}
		if !resp.Blocking {
			t.Error("Blocking = false, want true for required company")
		}
		if store.recorded != 1 {
			t.Errorf("prompt usage recorded %d times, want 1", store.recorded)
		}
		if !slices.Equal(mods.recorded, []uuid.UUID{greetingID, signatureID}) {
			t.Errorf("module usage = %v", mods.recorded)
		}
	})

	t.Run("record disabled", func(t *testing.T) {
		mods := &moduleStore{snapshot: library(t)}
		store := &promptStore{prompt: prompt}
		sys := compose.New(mods, store, nil, composition.Limits{}, discard())

		if _, err := sys.ComposePrompt(context.Background(), testOwner, prompt.ID, compose.PromptRequest{}); err != nil {
			t.Fatalf("ComposePrompt: %v", err)
		}
		if store.recorded != 0 || len(mods.recorded) != 0 {
			t.Errorf("usage recorded without Record flag")
		}
	})

	t.Run("usage failure is not fatal", func(t *testing.T) {
		mods := &moduleStore{snapshot: library(t), recordErr: errors.New("db down")}
		sys := compose.New(mods, &promptStore{prompt: prompt}, nil, composition.Limits{}, discard())

		if _, err := sys.ComposePrompt(context.Background(), testOwner, prompt.ID, compose.PromptRequest{Record: true}); err != nil {
			t.Errorf("ComposePrompt: %v", err)
		}
	})

	t.Run("missing prompt", func(t *testing.T) {
		sys := compose.New(&moduleStore{snapshot: library(t)}, &promptStore{}, nil, composition.Limits{}, discard())

		_, err := sys.ComposePrompt(context.Background(), testOwner, uuid.New(), compose.PromptRequest{})
		if !errors.Is(err, prompts.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if compose.MapHTTPStatus(err) != http.StatusNotFound {
			t.Errorf("status = %d, want 404", compose.MapHTTPStatus(err))
		}
	})
}

func TestAnalyze(t *testing.T) {
	sys := compose.New(&moduleStore{snapshot: library(t)}, &promptStore{}, nil, composition.Limits{}, discard())

	a, err := sys.Analyze(context.Background(), testOwner, "{{greeting}} {{topic}} {{signature}} {{greeting}}")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !slices.Equal(a.Placeholders, []string{"greeting", "topic", "signature"}) {
		t.Errorf("Placeholders = %v", a.Placeholders)
	}
	if !slices.Equal(a.Modules, []string{"greeting", "signature"}) {
		t.Errorf("Modules = %v", a.Modules)
	}
	if !slices.Equal(a.Variables, []string{"topic"}) {
		t.Errorf("Variables = %v", a.Variables)
	}

	if _, err := sys.Analyze(context.Background(), testOwner, ""); !errors.Is(err, compose.ErrValidation) {
		t.Errorf("empty template err = %v, want ErrValidation", err)
	}
}

func TestComposeSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	sys := compose.New(&moduleStore{snapshot: library(t)}, &promptStore{}, nil, composition.Limits{}, discard())

	if _, err := sys.Compose(context.Background(), testOwner, compose.Request{Template: "{{greeting}}"}); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	_, _ = sys.Compose(context.Background(), testOwner, compose.Request{})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "compose.Compose" {
			t.Errorf("span name = %q", s.Name())
		}
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("successful compose span marked as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("failed compose span status should be Error")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", compose.ErrValidation, http.StatusBadRequest},
		{"prompt not found", prompts.ErrNotFound, http.StatusNotFound},
		{"cycle", composition.ErrCycle, http.StatusUnprocessableEntity},
		{"missing module", composition.ErrMissingModule, http.StatusUnprocessableEntity},
		{"depth", composition.ErrDepthExceeded, http.StatusUnprocessableEntity},
		{"budget", &composition.BudgetError{Resource: composition.BudgetExpansions, Limit: 1}, http.StatusUnprocessableEntity},
		{"library", modules.ErrComposition, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compose.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
