// Package fsys provides the filesystem used for tenant code and backups.
package fsys

import (
	"github.com/spf13/afero"
	"go.uber.org/fx"
)

func NewOsFs() afero.Fs {
	return afero.NewOsFs()
}

var Module = fx.Options(
	fx.Provide(NewOsFs),
)
