package document

import (
	"github.com/smallbiznis/quotebook/internal/document/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("document",
	fx.Provide(repository.Provide),
	fx.Provide(NewTransitionPolicy),
)
