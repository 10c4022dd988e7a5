package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/pkg/types"
	"github.com/mesh-intelligence/recordkit/pkg/validator"
)

// Descriptor file extensions, tried in order.
var descriptorExts = []string{".yaml", ".yml"}

// Registry caches record types and binds each type to a store. It is safe
// for concurrent use; note that SetAdapter on a type already in use by other
// goroutines rebinds it for all of them.
type Registry struct {
	mu       sync.RWMutex
	source   fs.FS
	types    map[string]*RecordType
	adapters map[string]types.Store
	fallback types.Store

	validator *validator.Validator
	logger    *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithSource reads descriptors from fsys.
func WithSource(fsys fs.FS) Option {
	return func(r *Registry) { r.source = fsys }
}

// WithDir reads descriptors from a directory on disk.
func WithDir(dir string) Option {
	return func(r *Registry) { r.source = os.DirFS(dir) }
}

// WithValidator replaces the default rule validator.
func WithValidator(v *validator.Validator) Option {
	return func(r *Registry) {
		if v != nil {
			r.validator = v
		}
	}
}

// WithLogger sets the logger handed to records. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAdapter binds a default store used by every type without its own
// binding.
func WithAdapter(s types.Store) Option {
	return func(r *Registry) { r.fallback = s }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		types:     make(map[string]*RecordType),
		adapters:  make(map[string]types.Store),
		validator: validator.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validator returns the rule validator records use.
func (r *Registry) Validator() *validator.Validator { return r.validator }

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger { return r.logger }

// Load returns the named type, reading and validating its descriptor on the
// first call. Later calls return the cached type without touching the
// source.
func (r *Registry) Load(name string) (*RecordType, error) {
	if rt, ok := r.Get(name); ok {
		return rt, nil
	}
	if r.source == nil {
		return nil, configErr(name, "not registered and no descriptor source configured")
	}
	if name == "" || strings.ContainsAny(name, `/\`) || !fs.ValidPath(name) {
		return nil, configErr(name, "invalid type name")
	}

	data, file, err := r.readDescriptor(name)
	if err != nil {
		return nil, err
	}
	rt, err := Parse(name, data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.types[name]; ok {
		return cached, nil
	}
	r.types[name] = rt
	r.logger.Debug("record type loaded",
		zap.String("type", name),
		zap.String("file", file),
		zap.String("table", rt.Table),
		zap.Int("attributes", len(rt.Attributes)),
		zap.Int("rules", len(rt.Rules)),
		zap.Int("relations", len(rt.Relations)))
	return rt, nil
}

func (r *Registry) readDescriptor(name string) ([]byte, string, error) {
	for _, ext := range descriptorExts {
		file := name + ext
		data, err := fs.ReadFile(r.source, file)
		if err == nil {
			return data, file, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s: reading %s: %v", types.ErrConfiguration, name, file, err)
		}
	}
	return nil, "", configErr(name, "no descriptor found")
}

// LoadAll loads every descriptor in the source and returns the types sorted
// by name. It stops at the first invalid descriptor.
func (r *Registry) LoadAll() ([]*RecordType, error) {
	if r.source == nil {
		return r.All(), nil
	}
	entries, err := fs.ReadDir(r.source, ".")
	if err != nil {
		return nil, fmt.Errorf("%w: listing descriptors: %v", types.ErrConfiguration, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if !slices.Contains(descriptorExts, ext) {
			continue
		}
		if _, err := r.Load(strings.TrimSuffix(e.Name(), ext)); err != nil {
			return nil, err
		}
	}
	return r.All(), nil
}

// IsLoaded reports whether the named type is cached.
func (r *Registry) IsLoaded(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Get returns the cached type without loading it.
func (r *Registry) Get(name string) (*RecordType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.types[name]
	return rt, ok
}

// Set validates rt and caches a copy of it under rt.Name, replacing any
// earlier entry. It is the programmatic alternative to a descriptor file.
func (r *Registry) Set(rt RecordType) (*RecordType, error) {
	c := rt.clone()
	if err := c.prepare(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[c.Name] = c
	return c, nil
}

// All returns the cached types sorted by name.
func (r *Registry) All() []*RecordType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RecordType, 0, len(r.types))
	for _, rt := range r.types {
		out = append(out, rt)
	}
	slices.SortFunc(out, func(a, b *RecordType) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// SetAdapter binds the store used for the named type.
func (r *Registry) SetAdapter(name string, s types.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == nil {
		delete(r.adapters, name)
		return
	}
	r.adapters[name] = s
}

// SetDefaultAdapter binds the store used by types without their own binding.
func (r *Registry) SetDefaultAdapter(s types.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = s
}

// Adapter returns the store bound to the named type, falling back to the
// default store. Returns types.ErrAdapterNotSet when neither is bound.
func (r *Registry) Adapter(name string) (types.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.adapters[name]; ok {
		return s, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w for type %s", types.ErrAdapterNotSet, name)
}
