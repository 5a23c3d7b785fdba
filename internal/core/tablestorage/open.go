package tablestorage

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type Opts struct {
	Driver           string // "azure" | "memory"
	ConnectionString string
	TableName        string
	CreateTable      bool
	Logger           *zap.Logger
}

// Open builds the configured table and wraps it with metrics and logging.
func Open(ctx context.Context, o Opts) (Table, error) {
	l := o.Logger
	if l == nil {
		l = zap.NewNop()
	}
	var t Table
	switch o.Driver {
	case "azure", "":
		l.Info("[table] opening azure table",
			zap.String("table", o.TableName),
			zap.String("conn", MaskConnectionString(o.ConnectionString)),
		)
		at, err := NewAzureTable(ctx, o.ConnectionString, o.TableName, o.CreateTable)
		if err != nil {
			return nil, err
		}
		t = at
	case "memory":
		l.Warn("[table] using in-memory table, data is not persisted", zap.String("table", o.TableName))
		t = NewMemoryTable(o.TableName)
	default:
		return nil, ErrUnsupportedDriver
	}
	return Instrument(t, l), nil
}

// MaskConnectionString hides secrets in a storage connection string so it can
// be logged.
func MaskConnectionString(cs string) string {
	parts := strings.Split(strings.TrimSpace(cs), ";")
	for i, p := range parts {
		k, _, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "accountkey", "sharedaccesssignature":
			parts[i] = k + "=****"
		}
	}
	return strings.Join(parts, ";")
}
