package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/api"
	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/internal/infrastructure"
	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/database"
	"github.com/mxn2020/prompt-verse-io/pkg/middleware"
	"github.com/mxn2020/prompt-verse-io/pkg/openapi"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
	"github.com/mxn2020/prompt-verse-io/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "1m",
			WriteTimeout:    "15m",
			ShutdownTimeout: "30s",
		},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "promptverse",
			User:            "promptverse",
			Password:        "promptverse",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "archives",
			ConnectionString: azuriteConnString,
			MaxListSize:      50,
		},
		Auth: auth.Config{
			DevOwner: "00000000-0000-0000-0000-000000000001",
		},
		Composition: config.CompositionConfig{MaxDepth: 16},
		API: config.APIConfig{
			BasePath:    "/api",
			MaxBodySize: "1KB",
			CORS: middleware.CORSConfig{
				Enabled: false,
			},
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
			OpenAPI: openapi.Config{Title: "PromptVerse API"},
		},
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
	}
}

func setupInfra(t *testing.T) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	return infra
}

type rejectAll struct{}

func (rejectAll) Verify(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, auth.ErrUnauthorized
}

func TestNewModule(t *testing.T) {
	m, err := api.NewModule(validConfig(), setupInfra(t))
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	if m.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", m.Prefix())
	}
}

func TestNewRuntime(t *testing.T) {
	runtime := api.NewRuntime(validConfig(), setupInfra(t))

	if runtime.Pagination.DefaultPageSize != 20 {
		t.Errorf("pagination default page size: got %d, want 20", runtime.Pagination.DefaultPageSize)
	}
	if runtime.Limits.MaxDepth != 16 {
		t.Errorf("max depth: got %d, want 16", runtime.Limits.MaxDepth)
	}
	if runtime.Logger == nil {
		t.Error("runtime logger is nil")
	}
	if runtime.Database == nil || runtime.Storage == nil || runtime.Cache == nil {
		t.Error("runtime infrastructure systems missing")
	}
	if runtime.Verifier == nil {
		t.Error("runtime verifier is nil")
	}
}

func TestNewDomain(t *testing.T) {
	runtime := api.NewRuntime(validConfig(), setupInfra(t))

	domain := api.NewDomain(runtime)
	if domain.Modules == nil || domain.Prompts == nil || domain.Compose == nil {
		t.Fatalf("domain = %+v, want all systems", domain)
	}
}

func TestOpenAPISpec(t *testing.T) {
	infra := setupInfra(t)
	infra.Verifier = rejectAll{}

	m, err := api.NewModule(validConfig(), infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/api/openapi.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without a token", rec.Code)
	}

	var spec openapi.Spec
	if err := json.NewDecoder(rec.Body).Decode(&spec); err != nil {
		t.Fatalf("decode spec: %v", err)
	}

	if spec.Info.Title != "PromptVerse API" {
		t.Errorf("title = %q", spec.Info.Title)
	}
	for _, path := range []string{
		"/modules",
		"/modules/{id}",
		"/modules/import",
		"/prompts/{id}/fork",
		"/compose",
		"/compose/prompts/{id}",
		"/storage/download/{key}",
	} {
		if _, ok := spec.Paths[path]; !ok {
			t.Errorf("spec missing path %s", path)
		}
	}
	if item := spec.Paths["/modules/{id}"]; item == nil || item.Get == nil || item.Put == nil || item.Delete == nil {
		t.Errorf("/modules/{id} operations = %+v", item)
	}
	if _, ok := spec.Components.Schemas["ComposeResponse"]; !ok {
		t.Error("spec missing ComposeResponse schema")
	}
	if len(spec.Security) != 0 {
		t.Errorf("security = %v, want none while token verification is disabled", spec.Security)
	}
}

func TestModuleRequiresToken(t *testing.T) {
	infra := setupInfra(t)
	infra.Verifier = rejectAll{}

	m, err := api.NewModule(validConfig(), infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("POST", "/api/compose", strings.NewReader(`{"template":"x"}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestModuleLimitsBodySize(t *testing.T) {
	m, err := api.NewModule(validConfig(), setupInfra(t))
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	body := `{"template":"` + strings.Repeat("x", 4096) + `"}`
	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("POST", "/api/compose", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for oversized body", rec.Code)
	}
}
