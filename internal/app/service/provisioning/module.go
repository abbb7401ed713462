package provisioning

import "go.uber.org/fx"

// Module exposes the database provisioning service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
