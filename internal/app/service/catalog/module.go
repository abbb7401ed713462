package catalog

import (
	"context"

	"go.uber.org/fx"
)

func seedOnStart(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := s.Seed(ctx)
			return err
		},
	})
}

// Module exposes the product catalog via Fx and seeds it on start.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(seedOnStart),
)
