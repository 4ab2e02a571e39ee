// Package index composes Page, Pager, Node, Tree and Iterator into the
// directory-backed unit a caller opens, reads, and writes (spec §4.4): a
// config file, two backing pager files, a root-pointer file for
// standalone trees, and — for a HOST index — a recursively opened
// embedded index wired in as an EMBEDDED value-insertion strategy.
package index

import (
	"os"
	"path"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/config"
	"github.com/beetdb/beet/internal/btree"
	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/node"
	"github.com/beetdb/beet/internal/pager"
)

const (
	configFile = "config"
	leafFile   = "leaf"
	intFile    = "nonleaf"
	roofFile   = "roof"
)

// OpenOverrides supplies open_config overrides for the cache-size
// sentinels recorded in a config record (spec §6: 0 unlimited, -1
// default, -2 ignore-on-open).
type OpenOverrides struct {
	LeafCacheSize int
	IntCacheSize  int
}

// Index is an open, directory-backed tree plus (for HOST) its embedded
// subtree.
type Index struct {
	fs   afero.Fs
	dir  string
	cfg  config.Config
	log  *zap.Logger

	leafPager *pager.Pager
	intPager  *pager.Pager
	roof      afero.File // nil for an embedded index
	tree      *btree.Tree
	layout    node.Layout
	cmpFn     cmp.Func

	standalone bool
	embedded   *Index // non-nil iff cfg.IndexType == config.Host
}

func resolveCacheSize(configured int32, override int) int {
	switch configured {
	case config.CacheIgnoreOnOpen:
		return override
	case config.CacheDefault:
		if override > 0 {
			return override
		}
		return 256
	case config.CacheUnlimited:
		return 0
	default:
		return int(configured)
	}
}

func layoutFrom(cfg config.Config) node.Layout {
	return node.Layout{
		KeySize:          cfg.KeySize,
		DataSize:         cfg.DataSize,
		LeafNodeSize:     cfg.LeafNodeSize,
		InternalNodeSize: cfg.IntNodeSize,
	}
}

// Create lays out a fresh index directory: the config record, two empty
// backing files (leaf and nonleaf), and (for a standalone index) an empty
// roof file that
// Open's bootstrap step will populate with the first leaf's id (spec
// §4.4).
func Create(fs afero.Fs, dir string, cfg config.Config, standalone bool, log *zap.Logger) *berrors.BeetError {
	if log == nil {
		log = zap.NewNop()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return berrors.Wrap(err, "mkdir "+dir)
	}

	if err := afero.WriteFile(fs, path.Join(dir, configFile), cfg.Encode(), 0o644); err != nil {
		return berrors.Wrap(err, "write config")
	}
	for _, name := range []string{leafFile, intFile} {
		f, err := fs.OpenFile(path.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return berrors.Wrap(err, "create "+name)
		}
		if cerr := f.Close(); cerr != nil {
			return berrors.Wrap(cerr, "close "+name)
		}
	}
	if standalone {
		f, err := fs.OpenFile(path.Join(dir, roofFile), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return berrors.Wrap(err, "create roof")
		}
		if cerr := f.Close(); cerr != nil {
			return berrors.Wrap(cerr, "close roof")
		}
	}
	log.Info("index created", zap.String("dir", dir), zap.String("type", cfg.IndexType.String()))
	return nil
}

// Open reads the config record, opens the backing pagers, resolves the
// comparator, builds the tree and — for a HOST index — recursively opens
// the embedded index from subPath and wires it into an EMBEDDED strategy
// (spec §4.4).
func Open(fs afero.Fs, dir string, standalone bool, overrides OpenOverrides, log *zap.Logger) (*Index, *berrors.BeetError) {
	if log == nil {
		log = zap.NewNop()
	}

	raw, rerr := afero.ReadFile(fs, path.Join(dir, configFile))
	if rerr != nil {
		return nil, berrors.Wrap(rerr, "read config")
	}
	cfg, derr := config.Decode(raw)
	if derr != nil {
		return nil, derr
	}

	cmpName := cfg.CompareName
	if cmpName == "" {
		cmpName = "bytes"
	}
	cmpFn, cerr := cmp.Lookup(cmpName)
	if cerr != nil {
		return nil, cerr
	}

	layout := layoutFrom(cfg)

	leafCache := resolveCacheSize(cfg.LeafCacheSize, overrides.LeafCacheSize)
	intCache := resolveCacheSize(cfg.IntCacheSize, overrides.IntCacheSize)

	leafPgr, lperr := pager.Open(fs, path.Join(dir, leafFile), layout.LeafPageSize(), leafCache, true, log)
	if lperr != nil {
		return nil, lperr
	}
	intPgr, iperr := pager.Open(fs, path.Join(dir, intFile), layout.InternalPageSize(), intCache, false, log)
	if iperr != nil {
		_ = leafPgr.Close()
		return nil, iperr
	}

	idx := &Index{
		fs:         fs,
		dir:        dir,
		cfg:        cfg,
		log:        log,
		leafPager:  leafPgr,
		intPager:   intPgr,
		layout:     layout,
		cmpFn:      cmpFn,
		standalone: standalone,
	}

	var strat btree.Strategy
	switch cfg.IndexType {
	case config.Null:
		strat = btree.NullStrategy{}
	case config.Plain:
		strat = btree.PlainStrategy{}
	case config.Host:
		subDir := path.Join(path.Dir(dir), cfg.SubPath)
		inner, ierr := Open(fs, subDir, false, overrides, log)
		if ierr != nil {
			_ = leafPgr.Close()
			_ = intPgr.Close()
			return nil, ierr
		}
		idx.embedded = inner
		strat = &btree.EmbeddedStrategy{Inner: inner.tree, InnerKeySize: inner.cfg.KeySize}
	default:
		_ = leafPgr.Close()
		_ = intPgr.Close()
		return nil, berrors.Newf(berrors.UnknownType, "unknown index type %d", cfg.IndexType)
	}

	var rf afero.File
	if standalone {
		f, ferr := fs.OpenFile(path.Join(dir, roofFile), os.O_RDWR|os.O_CREATE, 0o644)
		if ferr != nil {
			_ = leafPgr.Close()
			_ = intPgr.Close()
			return nil, berrors.Wrap(ferr, "open roof")
		}
		advisoryLock(f, log)
		rf = f
		idx.roof = f
	}

	tree, terr := btree.New(leafPgr, intPgr, cmpFn, layout, strat, rf)
	if terr != nil {
		_ = leafPgr.Close()
		_ = intPgr.Close()
		return nil, terr
	}
	idx.tree = tree

	if standalone && !tree.Bootstrapped() {
		if berr := tree.Bootstrap(); berr != nil {
			return nil, berr
		}
	}

	log.Info("index opened", zap.String("dir", dir), zap.String("type", cfg.IndexType.String()))
	return idx, nil
}

// Close tears down the embedded index first (if any), then this index's
// tree, pagers, and root file (spec §4.4).
func (idx *Index) Close() *berrors.BeetError {
	if idx.embedded != nil {
		if err := idx.embedded.Close(); err != nil {
			return err
		}
	}
	if idx.roof != nil {
		if err := idx.roof.Close(); err != nil {
			return berrors.Wrap(err, "close roof")
		}
	}
	if err := idx.leafPager.Close(); err != nil {
		return err
	}
	if err := idx.intPager.Close(); err != nil {
		return err
	}
	idx.log.Info("index closed", zap.String("dir", idx.dir))
	return nil
}

// Drop removes an index's own files. It does not recurse into subPath:
// the host does not own the embedded index's storage lifecycle (spec
// §4.4).
func Drop(fs afero.Fs, dir string) *berrors.BeetError {
	for _, name := range []string{leafFile, intFile, configFile, roofFile} {
		p := path.Join(dir, name)
		if exists, _ := afero.Exists(fs, p); exists {
			if err := fs.Remove(p); err != nil {
				return berrors.Wrap(err, "remove "+name)
			}
		}
	}
	return nil
}

func (idx *Index) Tree() *btree.Tree     { return idx.tree }
func (idx *Index) Layout() node.Layout   { return idx.layout }
func (idx *Index) Config() config.Config { return idx.cfg }
func (idx *Index) Comparator() cmp.Func  { return idx.cmpFn }

// Insert/Upsert/Hide/Unhide/Get/DoesExist/Height delegate to the
// top-level tree for a simple (non-nested) caller.

func (idx *Index) Insert(key, value []byte) *berrors.BeetError { return idx.tree.Insert(key, value) }
func (idx *Index) Upsert(key, value []byte) *berrors.BeetError { return idx.tree.Upsert(key, value) }
func (idx *Index) Hide(key []byte) *berrors.BeetError          { return idx.tree.Hide(key) }
func (idx *Index) Unhide(key []byte) *berrors.BeetError        { return idx.tree.Unhide(key) }
func (idx *Index) Get(key []byte) ([]byte, *berrors.BeetError) { return idx.tree.Get(key) }
func (idx *Index) DoesExist(key []byte) *berrors.BeetError     { return idx.tree.DoesExist(key) }
func (idx *Index) Height() (int, *berrors.BeetError)           { return idx.tree.Height() }

// Hide2/Unhide2 hide or unhide key2 inside the embedded subtree rooted at
// key1's outer value, one-shot wrappers around a throwaway State for
// callers that don't otherwise need one (spec §4.5, grounded on the
// original's beet_index_hide2).
func (idx *Index) Hide2(key1, key2 []byte) *berrors.BeetError {
	return idx.NewState().Hide2(key1, key2)
}

func (idx *Index) Unhide2(key1, key2 []byte) *berrors.BeetError {
	return idx.NewState().Unhide2(key1, key2)
}

// Purge compacts away hidden slots in the top-level tree, reclaiming the
// space Hide left behind (spec §4.3/§4.5, grounded on the original's
// beet_index_purge).
func (idx *Index) Purge() (int, *berrors.BeetError) {
	return idx.tree.Purge()
}
