// cache.go
//
// Content-addressed disk cache for interpolation artifacts. Artifacts are
// JSON files published atomically (temp file + rename) and never mutated
// afterwards: a forced rebuild writes the next version suffix, so readers
// holding older versions keep working. Two processes racing on the same
// key may both build; the rename keeps whichever publication lands last,
// built from identical inputs.

package interp

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// GridSpec pins the axis layout an artifact was built over.
type GridSpec struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
	N  int     `json:"n"`
}

// Spec returns the GridSpec describing g.
func (g Grid) Spec() GridSpec {
	return GridSpec{Lo: g.Min(), Hi: g.Max(), N: g.Len()}
}

// Key identifies an artifact by everything that determines its content:
// model identity and parameters, category, dimensionality, and the grid
// layout per axis. Equal keys address the identical artifact. Model must
// be a path-safe identifier; it becomes a directory name.
type Key struct {
	Model    string             `json:"model"`
	Category Category           `json:"category"`
	Dim      int                `json:"dim"`
	XGrid    GridSpec           `json:"x_grid"`
	YGrid    GridSpec           `json:"y_grid,omitempty"`
	Params   map[string]float64 `json:"params,omitempty"`
}

// digest folds the key into a stable hex token for artifact names. Params
// iterate in sorted order so the token does not depend on map ordering.
func (k Key) digest() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d", k.Model, k.Category, k.Dim)
	fmt.Fprintf(h, "|x:%.17g:%.17g:%d", k.XGrid.Lo, k.XGrid.Hi, k.XGrid.N)
	fmt.Fprintf(h, "|y:%.17g:%.17g:%d", k.YGrid.Lo, k.YGrid.Hi, k.YGrid.N)
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "|%s=%.17g", name, k.Params[name])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// envelope is the on-disk artifact layout. Exactly one of Interpolant and
// Family is set.
type envelope struct {
	Key         Key          `json:"key"`
	BuiltAt     time.Time    `json:"built_at"`
	Interpolant *Interpolant `json:"interpolant,omitempty"`
	Family      *Family      `json:"family,omitempty"`
}

// Cache stores built artifacts under a root directory, one subdirectory
// per model. An in-process layer short-circuits repeat lookups within a
// run. Methods are not safe for concurrent use by multiple goroutines.
type Cache struct {
	root string
	mem  *gocache.Cache
}

// NewCache opens (creating if needed) a cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating cache root %s: %w", ErrCacheIO, dir, err)
	}
	return &Cache{root: dir, mem: gocache.New(gocache.NoExpiration, 0)}, nil
}

// Root returns the cache's root directory.
func (c *Cache) Root() string { return c.root }

// ArtifactPath returns where the given version of key's artifact lives.
func (c *Cache) ArtifactPath(key Key, version int) string {
	return filepath.Join(c.modelDir(key), artifactName(key, version))
}

func (c *Cache) modelDir(key Key) string {
	return filepath.Join(c.root, key.Model)
}

func artifactName(key Key, version int) string {
	return fmt.Sprintf("%s_%dd_%s_v%d.json", key.Category, key.Dim, key.digest(), version)
}

// BuildInterpolantFunc produces the artifact when the cache cannot serve
// it.
type BuildInterpolantFunc func() (*Interpolant, error)

// BuildFamilyFunc produces a conditioned family when the cache cannot
// serve it.
type BuildFamilyFunc func() (*Family, error)

// GetInterpolant returns the cached interpolant for key, building and
// publishing it when absent or when force is set.
func (c *Cache) GetInterpolant(key Key, force bool, build BuildInterpolantFunc) (*Interpolant, error) {
	env, err := c.get(key, force, func() (*envelope, error) {
		it, err := build()
		if err != nil {
			return nil, err
		}
		return &envelope{Key: key, BuiltAt: time.Now().UTC(), Interpolant: it}, nil
	})
	if err != nil {
		return nil, err
	}
	if env.Interpolant == nil {
		return nil, fmt.Errorf("%w: artifact for model %q holds no interpolant", ErrCacheIO, key.Model)
	}
	return env.Interpolant, nil
}

// GetFamily returns the cached conditioned family for key, building and
// publishing it when absent or when force is set.
func (c *Cache) GetFamily(key Key, force bool, build BuildFamilyFunc) (*Family, error) {
	env, err := c.get(key, force, func() (*envelope, error) {
		f, err := build()
		if err != nil {
			return nil, err
		}
		return &envelope{Key: key, BuiltAt: time.Now().UTC(), Family: f}, nil
	})
	if err != nil {
		return nil, err
	}
	if env.Family == nil {
		return nil, fmt.Errorf("%w: artifact for model %q holds no family", ErrCacheIO, key.Model)
	}
	return env.Family, nil
}

func (c *Cache) get(key Key, force bool, build func() (*envelope, error)) (*envelope, error) {
	latest, err := c.latestVersion(key)
	if err != nil {
		return nil, err
	}

	if !force && latest > 0 {
		memKey := c.memKey(key, latest)
		if hit, ok := c.mem.Get(memKey); ok {
			return hit.(*envelope), nil
		}
		env, err := c.read(key, latest)
		if err == nil {
			c.mem.Set(memKey, env, gocache.NoExpiration)
			logrus.Debugf("cache hit: model=%s category=%s v%d", key.Model, key.Category, latest)
			return env, nil
		}
		logrus.Warnf("rebuilding model %q: unreadable cache artifact v%d: %v", key.Model, latest, err)
	}

	version := latest + 1
	logrus.Infof("building %s table for model %q (v%d)", key.Category, key.Model, version)
	env, err := build()
	if err != nil {
		return nil, err
	}
	if err := c.publish(key, version, env); err != nil {
		return nil, err
	}
	c.mem.Set(c.memKey(key, version), env, gocache.NoExpiration)
	return env, nil
}

func (c *Cache) memKey(key Key, version int) string {
	return fmt.Sprintf("%s/%s/v%d", key.Model, key.digest(), version)
}

// latestVersion scans the model directory for the highest published
// version of key's artifact. Zero means none exist.
func (c *Cache) latestVersion(key Key) (int, error) {
	dir := c.modelDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: reading %s: %w", ErrCacheIO, dir, err)
	}
	prefix := fmt.Sprintf("%s_%dd_%s_v", key.Category, key.Dim, key.digest())
	best := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"))
		if err != nil {
			continue
		}
		if v > best {
			best = v
		}
	}
	return best, nil
}

func (c *Cache) read(key Key, version int) (*envelope, error) {
	path := c.ArtifactPath(key, version)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrCacheIO, path, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrCacheIO, path, err)
	}
	return &env, nil
}

// publish writes the artifact to a temp file in the destination directory
// and renames it into place, so readers only ever observe complete files.
func (c *Cache) publish(key Key, version int, env *envelope) error {
	dir := c.modelDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrCacheIO, dir, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: encoding artifact for model %q: %w", ErrCacheIO, key.Model, err)
	}

	tmp, err := os.CreateTemp(dir, "."+artifactName(key, version)+".tmp-")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %s: %w", ErrCacheIO, dir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %w", ErrCacheIO, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: closing %s: %w", ErrCacheIO, tmp.Name(), err)
	}

	path := c.ArtifactPath(key, version)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: publishing %s: %w", ErrCacheIO, path, err)
	}
	logrus.Infof("published %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return nil
}
