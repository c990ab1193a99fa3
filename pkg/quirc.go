package quirc

import (
	"context"
)

type Quirc interface {
	Start(ctx context.Context) error
	Stop()
	Done() <-chan struct{}
	Err() error
	RegisterPlugin(plugin interface{}) error
}
