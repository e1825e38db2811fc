// Package project manages a bewritten project directory: its SQLite store,
// manuscript files, context exports and the exclusive project lock.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"

	"github.com/bit-bot-bit/bewritten/internal/store"
	"github.com/bit-bot-bit/bewritten/pkg/continuity"
	"github.com/bit-bot-bit/bewritten/pkg/provenance"
	"github.com/bit-bot-bit/bewritten/pkg/review"
)

var (
	// ErrProjectExists is returned by Create when the directory already exists.
	ErrProjectExists = errors.New("directory already exists")

	// ErrProjectNotFound is returned by Open when the directory is missing.
	ErrProjectNotFound = errors.New("project directory not found")

	// ErrClosed is returned by operations on a closed project.
	ErrClosed = errors.New("project is closed")

	// ErrLocked is returned when the project lock cannot be acquired in time.
	ErrLocked = errors.New("project is locked by another process")
)

// Project layout, relative to the project root.
const (
	DirManuscript = "manuscript"
	DirContext    = "context"
	DirProvenance = "provenance"
	DirAI         = "ai"

	FileDatabase      = "app.db"
	FileLock          = ".bewritten.lock"
	FileCharacters    = "context/characters.yaml"
	FileLocations     = "context/locations.yaml"
	FileTimeline      = "context/timeline.yaml"
	FileRelationships = "context/relationships.graph.json"
)

const (
	emptyYAMLList = "---\n[]"
	emptyJSONList = "[]"

	lockRetryDelay = 50 * time.Millisecond
)

// Options configures how projects are created and opened.
type Options struct {
	// FS holds the project files. Nil means the OS filesystem, which also
	// enables the cross-process file lock.
	FS hackpadfs.FS

	// OpenStore opens the project database. Nil means an SQLite file at
	// <root>/app.db on the OS filesystem, or an in-memory SQLite store otherwise.
	OpenStore func(dbPath string, log *slog.Logger) (store.Storer, error)

	Logger      *slog.Logger
	LockTimeout time.Duration
	Review      review.Options

	// Rules replaces the default continuity rules when non-empty.
	Rules []continuity.Rule

	// Clock overrides the provenance time source.
	Clock func() time.Time
}

// fileSystem resolves the FS and the FS-relative root for an OS-style root path.
func (o Options) fileSystem(root string) (hackpadfs.FS, string, bool, error) {
	if o.FS != nil {
		p := strings.TrimPrefix(path.Clean(filepath.ToSlash(root)), "/")
		if p == "" {
			p = "."
		}
		return o.FS, p, false, nil
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, "", false, err
	}
	fs := osfs.NewFS()
	p, err := fs.FromOSPath(abs)
	if err != nil {
		return nil, "", false, err
	}
	return fs, p, true, nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Project is an open project. All store-backed operations serialize on an
// in-process mutex and, on the OS filesystem, an exclusive file lock.
type Project struct {
	root   string
	fs     hackpadfs.FS
	fsRoot string

	mu    sync.Mutex
	flock *flock.Flock

	store   store.Storer
	prov    *provenance.Log
	checker *continuity.Checker

	log  *slog.Logger
	opts Options
}

// Create lays out a new project at root. It fails if root already exists.
// The project is not opened.
func Create(ctx context.Context, root string, opts Options) error {
	fs, fsRoot, onOS, err := opts.fileSystem(root)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	if _, err := hackpadfs.Stat(fs, fsRoot); err == nil {
		return fmt.Errorf("%w: %s", ErrProjectExists, root)
	} else if !errors.Is(err, hackpadfs.ErrNotExist) {
		return fmt.Errorf("stat project: %w", err)
	}

	for _, dir := range []string{DirManuscript, DirContext, DirProvenance, DirAI} {
		if err := hackpadfs.MkdirAll(fs, path.Join(fsRoot, dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	seeds := []struct{ name, content string }{
		{FileCharacters, emptyYAMLList},
		{FileLocations, emptyYAMLList},
		{FileTimeline, emptyYAMLList},
		{FileRelationships, emptyJSONList},
	}
	for _, s := range seeds {
		if err := hackpadfs.WriteFullFile(fs, path.Join(fsRoot, s.name), []byte(s.content), 0o644); err != nil {
			return fmt.Errorf("seed %s: %w", s.name, err)
		}
	}

	// Create the database and its schema
	st, err := openStore(opts, root, onOS)
	if err != nil {
		return err
	}
	opts.logger().Info("project created", "root", root)
	return st.Close()
}

// Open attaches to an existing project. When the character table is empty
// it is seeded from context/characters.yaml; the same goes for locations.
func Open(ctx context.Context, root string, opts Options) (*Project, error) {
	fs, fsRoot, onOS, err := opts.fileSystem(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}

	info, err := hackpadfs.Stat(fs, fsRoot)
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, root)
	}
	if err != nil {
		return nil, fmt.Errorf("stat project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrProjectNotFound, root)
	}

	log := opts.logger().With("project", root)
	p := &Project{
		root:   root,
		fs:     fs,
		fsRoot: fsRoot,
		log:    log,
		opts:   opts,
	}
	if onOS {
		p.flock = flock.New(filepath.Join(root, FileLock))
	}

	unlock, err := p.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := openStore(opts, root, onOS)
	if err != nil {
		return nil, err
	}
	p.store = st

	var provOpts []provenance.Option
	if opts.Clock != nil {
		provOpts = append(provOpts, provenance.WithClock(opts.Clock))
	}
	p.prov = provenance.New(st, provOpts...)
	p.checker = continuity.NewChecker(opts.Rules...)

	if err := p.importContext(); err != nil {
		st.Close()
		return nil, err
	}

	log.Info("project opened")
	return p, nil
}

func openStore(opts Options, root string, onOS bool) (store.Storer, error) {
	log := opts.logger()
	var (
		st  store.Storer
		err error
	)
	switch {
	case opts.OpenStore != nil:
		st, err = opts.OpenStore(filepath.Join(root, FileDatabase), log)
	case onOS:
		st, err = store.OpenFile(filepath.Join(root, FileDatabase), store.WithLogger(log))
	default:
		st, err = store.NewSQLiteStore(store.WithLogger(log))
	}
	if err != nil {
		return nil, fmt.Errorf("open project database: %w", err)
	}
	return st, nil
}

// Root returns the project directory as given to Open.
func (p *Project) Root() string { return p.root }

// Store exposes the underlying store for read-only tooling.
func (p *Project) Store() store.Storer { return p.store }

// Close releases the database.
func (p *Project) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}

// lock takes the in-process mutex, then the file lock. The returned func releases both.
func (p *Project) lock(ctx context.Context) (func(), error) {
	p.mu.Lock()
	if p.flock == nil {
		return p.mu.Unlock, nil
	}

	lockCtx := ctx
	if p.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, p.opts.LockTimeout)
		defer cancel()
	}

	locked, err := p.flock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		p.mu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrLocked, p.root)
	}

	return func() {
		if err := p.flock.Unlock(); err != nil {
			p.log.Warn("release project lock", "err", err)
		}
		p.mu.Unlock()
	}, nil
}

// begin locks the project for one operation.
func (p *Project) begin(ctx context.Context) (func(), error) {
	unlock, err := p.lock(ctx)
	if err != nil {
		return nil, err
	}
	if p.store == nil {
		unlock()
		return nil, ErrClosed
	}
	return unlock, nil
}

// path joins elem onto the FS-relative project root.
func (p *Project) path(elem ...string) string {
	return path.Join(append([]string{p.fsRoot}, elem...)...)
}
