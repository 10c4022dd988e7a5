package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/recordkit/internal/postgres"
	"github.com/mesh-intelligence/recordkit/internal/sqlite"
	"github.com/mesh-intelligence/recordkit/pkg/record"
	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// session is an open store plus the registry bound to it.
type session struct {
	cfg    types.Config
	reg    *schema.Registry
	store  types.Store
	sqlite *sqlite.Backend
	close  func() error
}

// open attaches the configured store and builds a registry over the schema
// directory. Callers must call close.
func (a *app) open(ctx context.Context) (*session, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, userError("config: %w", err)
	}
	s := &session{cfg: cfg}

	switch cfg.Backend {
	case types.BackendSQLite:
		b := sqlite.NewBackend(a.logger)
		if err := b.Attach(cfg); err != nil {
			return nil, sysError("attach: %w", err)
		}
		s.store, s.sqlite, s.close = b, b, b.Detach
	case types.BackendPostgres:
		pg, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.DSN}, a.logger)
		if err != nil {
			return nil, sysError("connect: %w", err)
		}
		s.store = pg
		s.close = func() error { pg.Close(); return nil }
	}

	s.reg = schema.NewRegistry(
		schema.WithDir(cfg.SchemaDir),
		schema.WithLogger(a.logger),
		schema.WithAdapter(s.store),
	)
	a.logger.Debug("session opened",
		zap.String("backend", cfg.Backend),
		zap.String("schema_dir", cfg.SchemaDir))
	return s, nil
}

// withSession opens a session, runs fn and closes the session.
func (a *app) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			a.logger.Warn("close store", zap.Error(cerr))
		}
	}()
	return fn(s)
}

// repository returns the repository for typeName, mapping schema errors to
// user errors.
func (s *session) repository(typeName string) (*record.Repository, error) {
	repo, err := record.NewRepository(s.reg, typeName)
	if err != nil {
		return nil, classify(err, "type %s", typeName)
	}
	return repo, nil
}

// classify wraps err as a user error when it stems from bad input or
// configuration and as a system error otherwise.
func classify(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrConfiguration),
		errors.Is(err, types.ErrUndefinedAttribute),
		errors.Is(err, types.ErrUnknownRelation),
		errors.Is(err, types.ErrInvalidQuery),
		errors.Is(err, types.ErrRelationIntegrity):
		return userError("%s: %w", msg, err)
	}
	return sysError("%s: %w", msg, err)
}

// parseValue converts a command-line value to a scalar the way YAML would:
// ints, floats, booleans and null are typed, everything else (timestamps
// included) stays the raw string.
func parseValue(s string) any {
	if s == "" {
		return s
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) != 1 {
		return s
	}
	n := doc.Content[0]
	if n.Kind != yaml.ScalarNode {
		return s
	}
	switch n.ShortTag() {
	case "!!int", "!!float", "!!bool", "!!null":
		var v any
		if err := n.Decode(&v); err != nil {
			return s
		}
		return v
	}
	return s
}

// parseAssignments parses attr=value arguments.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, userError("expected attr=value, got %q", arg)
		}
		out[k] = parseValue(v)
	}
	return out, nil
}

// parseSorts parses --sort flag values.
func parseSorts(specs []string) ([]types.Sort, error) {
	sorts := make([]types.Sort, 0, len(specs))
	for _, spec := range specs {
		s, err := types.ParseSort(spec)
		if err != nil {
			return nil, userError("%w", err)
		}
		sorts = append(sorts, s)
	}
	return sorts, nil
}

// findRecord looks up a record by its id argument. Composite keys are given
// as comma-separated attr=value pairs.
func findRecord(ctx context.Context, repo *record.Repository, id string) (*record.Record, error) {
	var key any = parseValue(id)
	if strings.Contains(id, "=") {
		where, err := parseAssignments(strings.Split(id, ","))
		if err != nil {
			return nil, err
		}
		key = types.Where(where)
	}
	rec, err := repo.Find(ctx, key)
	if err != nil {
		return nil, classify(err, "find %s %s", repo.Type().Name, id)
	}
	return rec, nil
}
