package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/data_store/boltdb"
	"github.com/jirwin/quirc/pkg/data_store/sqlite"
)

// New opens the store selected by core.db_type.
func New(settings *config.Settings, l *zap.Logger) (data_store.DataStore, error) {
	switch dbType := settings.Core().DBType; dbType {
	case config.DBTypeBolt:
		c, err := boltdb.NewConfig(settings)
		if err != nil {
			return nil, err
		}
		store, err := boltdb.New(c, l)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.DBTypeSQLite:
		c, err := sqlite.NewConfig(settings)
		if err != nil {
			return nil, err
		}
		store, err := sqlite.New(c, l)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported db_type: %s", dbType)
	}
}
