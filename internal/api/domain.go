package api

import (
	"github.com/mxn2020/prompt-verse-io/internal/compose"
	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/internal/prompts"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Modules modules.System
	Prompts prompts.System
	Compose compose.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	modulesSystem := modules.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
		runtime.Limits,
	)

	promptsSystem := prompts.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	composeSystem := compose.New(
		modulesSystem,
		promptsSystem,
		runtime.Cache,
		runtime.Limits,
		runtime.Logger,
	)

	return &Domain{
		Modules: modulesSystem,
		Prompts: promptsSystem,
		Compose: composeSystem,
	}
}
