package embedded

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// currentFile names the file holding the live generation number of a type directory.
const currentFile = "CURRENT"

func (b *Backend) typeDir(objectType string) string {
	return filepath.Join(b.cfg.Dir, objectType)
}

func (b *Backend) generationDir(objectType string, gen int) string {
	return filepath.Join(b.typeDir(objectType), "g"+strconv.Itoa(gen))
}

func (b *Backend) persistent() bool { return b.cfg.Dir != "" }

// Generations lists the generations of objectType and the live one.
func (b *Backend) Generations(_ context.Context, objectType string) (int, []int, error) {
	if !b.persistent() {
		b.mu.RLock()
		defer b.mu.RUnlock()
		var all []int
		for gen := range b.indexes[objectType] {
			all = append(all, gen)
		}
		slices.Sort(all)
		return b.current[objectType], all, nil
	}

	entries, err := os.ReadDir(b.typeDir(objectType))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("list generations: %w", err)
	}
	var all []int
	for _, e := range entries {
		n, ok := strings.CutPrefix(e.Name(), "g")
		if !e.IsDir() || !ok {
			continue
		}
		if gen, err := strconv.Atoi(n); err == nil && gen > 0 {
			all = append(all, gen)
		}
	}
	slices.Sort(all)

	live := 0
	raw, err := os.ReadFile(filepath.Join(b.typeDir(objectType), currentFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return 0, nil, fmt.Errorf("read live generation: %w", err)
	default:
		live, err = strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil || !slices.Contains(all, live) {
			b.logger.Warn("Ignoring stale live generation pointer",
				zap.String("object_type", objectType), zap.String("pointer", strings.TrimSpace(string(raw))))
			live = 0
		}
	}
	return live, all, nil
}

// CreateGeneration creates an empty index for one generation.
func (b *Backend) CreateGeneration(_ context.Context, ot schema.ObjectType, gen int) error {
	im, err := indexMapping(ot)
	if err != nil {
		return err
	}
	var idx bleve.Index
	if b.persistent() {
		if err := os.MkdirAll(b.typeDir(ot.Key()), 0o755); err != nil {
			return fmt.Errorf("create type directory: %w", err)
		}
		idx, err = bleve.New(b.generationDir(ot.Key(), gen), im)
	} else {
		idx, err = bleve.NewMemOnly(im)
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexes[ot.Key()] == nil {
		b.indexes[ot.Key()] = make(map[int]bleve.Index)
	}
	b.indexes[ot.Key()][gen] = idx
	return nil
}

// WriteGeneration indexes docs into one generation as a single batch.
func (b *Backend) WriteGeneration(_ context.Context, objectType string, gen int, docs []document.Document) error {
	idx, err := b.index(objectType, gen)
	if err != nil {
		return err
	}
	batch := idx.NewBatch()
	for _, d := range docs {
		if d.Type() != objectType {
			return fmt.Errorf("document %s does not belong to %s", d.ID(), objectType)
		}
		if err := batch.Index(d.ID(), source(d)); err != nil {
			return fmt.Errorf("index %s: %w", d.ID(), err)
		}
	}
	return idx.Batch(batch)
}

// SealGeneration is a no-op: bleve makes batches searchable on return.
func (b *Backend) SealGeneration(context.Context, string, int) error { return nil }

// SwapGeneration repoints the in-process alias and persists the live pointer.
func (b *Backend) SwapGeneration(_ context.Context, objectType string, from, to int) error {
	var in, out []bleve.Index
	if to != 0 {
		idx, err := b.index(objectType, to)
		if err != nil {
			return err
		}
		in = append(in, idx)
	}
	if from != 0 {
		if idx, err := b.index(objectType, from); err == nil {
			out = append(out, idx)
		}
	}

	if b.persistent() {
		if err := b.writeCurrent(objectType, to); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.aliasLocked(objectType).Swap(in, out)
	b.current[objectType] = to
	return nil
}

func (b *Backend) writeCurrent(objectType string, gen int) error {
	path := filepath.Join(b.typeDir(objectType), currentFile)
	if gen == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear live generation: %w", err)
		}
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(gen)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write live generation: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write live generation: %w", err)
	}
	return nil
}

// DropGeneration closes and deletes one generation.
func (b *Backend) DropGeneration(_ context.Context, objectType string, gen int) error {
	b.mu.Lock()
	idx, open := b.indexes[objectType][gen]
	delete(b.indexes[objectType], gen)
	b.mu.Unlock()

	if open {
		if err := idx.Close(); err != nil {
			b.logger.Warn("Closing dropped generation failed",
				zap.String("object_type", objectType), zap.Int("generation", gen), zap.Error(err))
		}
	}
	if !b.persistent() {
		if !open {
			return lifecycle.ErrGenerationNotFound
		}
		return nil
	}

	dir := b.generationDir(objectType, gen)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return lifecycle.ErrGenerationNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

// index returns an open generation, opening it from disk on first use.
func (b *Backend) index(objectType string, gen int) (bleve.Index, error) {
	b.mu.RLock()
	idx, ok := b.indexes[objectType][gen]
	b.mu.RUnlock()
	if ok {
		return idx, nil
	}
	if !b.persistent() {
		return nil, lifecycle.ErrGenerationNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indexes[objectType][gen]; ok {
		return idx, nil
	}
	idx, err := bleve.Open(b.generationDir(objectType, gen))
	if err != nil {
		return nil, fmt.Errorf("open %s generation %d: %w", objectType, gen, err)
	}
	if b.indexes[objectType] == nil {
		b.indexes[objectType] = make(map[int]bleve.Index)
	}
	b.indexes[objectType][gen] = idx
	return idx, nil
}

// aliasLocked returns the read alias of objectType. Caller holds b.mu for writing.
func (b *Backend) aliasLocked(objectType string) bleve.IndexAlias {
	a, ok := b.aliases[objectType]
	if !ok {
		a = bleve.NewIndexAlias()
		b.aliases[objectType] = a
	}
	return a
}
