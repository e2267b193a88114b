package compose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/internal/prompts"
	"github.com/mxn2020/prompt-verse-io/pkg/cache"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

const tracerName = "github.com/mxn2020/prompt-verse-io/internal/compose"

type composer struct {
	modules   modules.System
	prompts   prompts.System
	cache     cache.System
	assembler composition.Assembler
	logger    *slog.Logger
}

// New creates a composition System over the module and prompt stores.
// A nil cache disables result caching.
func New(
	mods modules.System,
	prm prompts.System,
	c cache.System,
	limits composition.Limits,
	logger *slog.Logger,
) System {
	if c == nil {
		c = cache.Noop()
	}
	return &composer{
		modules:   mods,
		prompts:   prm,
		cache:     c,
		assembler: composition.NewAssembler(limits),
		logger:    logger.With("system", "compose"),
	}
}

func (c *composer) Handler() *Handler {
	return NewHandler(c, c.logger)
}

func (c *composer) Compose(ctx context.Context, owner uuid.UUID, req Request) (*Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "compose.Compose",
		trace.WithAttributes(
			attribute.String("owner", owner.String()),
			attribute.Int("bindings", len(req.Bindings)),
		),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	lib, err := c.modules.Snapshot(ctx, owner)
	if err != nil {
		return nil, fail(span, err)
	}

	resp, err := c.assemble(ctx, owner, req.Template, lib, req.Bindings, req.Required)
	if err != nil {
		return nil, fail(span, err)
	}

	annotate(span, resp)
	return resp, nil
}

func (c *composer) ComposePrompt(
	ctx context.Context,
	owner, promptID uuid.UUID,
	req PromptRequest,
) (*Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "compose.ComposePrompt",
		trace.WithAttributes(
			attribute.String("owner", owner.String()),
			attribute.String("prompt_id", promptID.String()),
			attribute.Bool("record", req.Record),
		),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	var (
		prompt *prompts.Prompt
		lib    *composition.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.prompts.Find(gctx, owner, promptID)
		if err != nil {
			return err
		}
		prompt = p
		return nil
	})
	g.Go(func() error {
		s, err := c.modules.Snapshot(gctx, owner)
		if err != nil {
			return err
		}
		lib = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fail(span, err)
	}

	required := mergeRequired(prompt.RequiredVariables, req.Required)

	resp, err := c.assemble(ctx, owner, prompt.Content, lib, req.Bindings, required)
	if err != nil {
		return nil, fail(span, err)
	}
	resp.PromptID = &prompt.ID

	if req.Record {
		c.record(ctx, owner, prompt.ID, resp.Result)
	}

	annotate(span, resp)
	return resp, nil
}

func (c *composer) Analyze(ctx context.Context, owner uuid.UUID, template string) (*Analysis, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "compose.Analyze",
		trace.WithAttributes(attribute.String("owner", owner.String())),
	)
	defer span.End()

	if template == "" {
		return nil, fail(span, fmt.Errorf("%w: template: cannot be blank", ErrValidation))
	}

	lib, err := c.modules.Snapshot(ctx, owner)
	if err != nil {
		return nil, fail(span, err)
	}

	a := Analyze(template, lib)
	span.SetAttributes(
		attribute.Int("modules", len(a.Modules)),
		attribute.Int("variables", len(a.Variables)),
	)
	return &a, nil
}

// assemble runs the assembler with a digest-keyed cache in front of it.
// Structural failures are never cached.
func (c *composer) assemble(
	ctx context.Context,
	owner uuid.UUID,
	template string,
	lib *composition.Snapshot,
	bindings composition.Bindings,
	required []string,
) (*Response, error) {
	key, err := c.cacheKey(owner, template, lib, bindings, required)
	if err != nil {
		return nil, err
	}

	if c.cache.Enabled() {
		raw, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache read failed", "error", err)
		}
		if ok {
			var resp Response
			if err := json.Unmarshal(raw, &resp); err == nil {
				resp.Cached = true
				return &resp, nil
			}
			c.logger.Warn("discarding unreadable cache entry", "key", key)
		}
	}

	assembly, err := c.assembler.Assemble(template, lib, bindings, required)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Assembly: *assembly,
		Blocking: composition.HasBlocking(assembly.Issues),
	}

	if c.cache.Enabled() {
		if raw, err := json.Marshal(resp); err == nil {
			if err := c.cache.Set(ctx, key, raw); err != nil {
				c.logger.Warn("cache write failed", "error", err)
			}
		}
	}

	return resp, nil
}

type digestModule struct {
	Key       string   `json:"key"`
	Content   string   `json:"content"`
	Variables []string `json:"variables"`
}

type digest struct {
	Owner    uuid.UUID            `json:"owner"`
	Template string               `json:"template"`
	Bindings composition.Bindings `json:"bindings"`
	Required []string             `json:"required"`
	Modules  []digestModule       `json:"modules"`
	Limits   composition.Limits   `json:"limits"`
}

// cacheKey hashes everything the assembly depends on, including the full
// library, so any module edit yields a new key.
func (c *composer) cacheKey(
	owner uuid.UUID,
	template string,
	lib *composition.Snapshot,
	bindings composition.Bindings,
	required []string,
) (string, error) {
	d := digest{
		Owner:    owner,
		Template: template,
		Bindings: bindings,
		Required: required,
		Limits:   c.assembler.Limits(),
	}
	for _, k := range lib.Keys() {
		m, _ := lib.Get(k)
		d.Modules = append(d.Modules, digestModule{
			Key:       k,
			Content:   m.Content,
			Variables: m.DeclaredVariables,
		})
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("digest composition: %w", err)
	}
	sum := sha256.Sum256(raw)
	return "compose:" + hex.EncodeToString(sum[:]), nil
}

func (c *composer) record(ctx context.Context, owner, promptID uuid.UUID, result composition.Result) {
	if err := c.prompts.RecordUsage(ctx, owner, promptID); err != nil {
		c.logger.Warn("record prompt usage failed", "prompt_id", promptID, "error", err)
	}

	ids := make([]uuid.UUID, 0, len(result.ExpandedModules))
	for _, key := range result.ExpandedModules {
		if id, err := uuid.Parse(key); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := c.modules.RecordUsage(ctx, owner, ids); err != nil {
		c.logger.Warn("record module usage failed", "modules", len(ids), "error", err)
	}
}

func annotate(span trace.Span, resp *Response) {
	span.SetAttributes(
		attribute.Int("expanded_modules", len(resp.Result.ExpandedModules)),
		attribute.Int("unresolved", len(resp.Result.Unresolved)),
		attribute.Int("issues", len(resp.Issues)),
		attribute.Bool("cached", resp.Cached),
	)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
