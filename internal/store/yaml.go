package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// YAMLStore keeps one YAML file per record under a root directory:
//
//	<root>/persons/<id>.yaml
//	<root>/works/<id>.yaml
//	<root>/performances/<id>.yaml
//	<root>/episodes/<prf_id>.yaml
//	<root>/review/<item id>.yaml
//	<root>/id_counters.yaml
//
// Writes go to a temp file that is renamed into place. Episode and review ids
// become file names, so ids that are not a single plain path element are
// rejected.
type YAMLStore struct {
	root string
	mu   sync.Mutex
}

const (
	fileCounters    = "id_counters"
	dirPersons      = "persons"
	dirWorks        = "works"
	dirPerformances = "performances"
	dirEpisodes     = "episodes"
	dirReview       = "review"
)

// NewYAML returns a YAMLStore rooted at dir.
func NewYAML(dir string) *YAMLStore {
	return &YAMLStore{root: dir}
}

func (s *YAMLStore) Migrate(_ context.Context) error {
	for _, d := range []string{dirPersons, dirWorks, dirPerformances, dirEpisodes, dirReview} {
		if err := os.MkdirAll(filepath.Join(s.root, d), 0o755); err != nil {
			return eris.Wrapf(err, "yaml: create %s", d)
		}
	}
	return nil
}

func (s *YAMLStore) Close() error { return nil }

func (s *YAMLStore) LoadPersons(ctx context.Context) ([]model.Person, error) {
	out, err := loadDir[model.Person](ctx, s.dir(dirPersons))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *YAMLStore) LoadWorks(ctx context.Context) ([]model.Work, error) {
	out, err := loadDir[model.Work](ctx, s.dir(dirWorks))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *YAMLStore) LoadPerformances(ctx context.Context) ([]model.Performance, error) {
	out, err := loadDir[model.Performance](ctx, s.dir(dirPerformances))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *YAMLStore) LoadEpisodes(ctx context.Context) ([]model.Episode, error) {
	out, err := loadDir[model.Episode](ctx, s.dir(dirEpisodes))
	sort.Slice(out, func(i, j int) bool { return out[i].PrfID < out[j].PrfID })
	return out, err
}

func (s *YAMLStore) SavePerson(_ context.Context, p model.Person) error {
	if p.ID == 0 {
		return eris.New("yaml: save person without id")
	}
	p.UpdatedAt = now()
	return s.write(dirPersons, idName(p.ID), p)
}

func (s *YAMLStore) SaveWork(_ context.Context, w model.Work) error {
	if w.ID == 0 {
		return eris.New("yaml: save work without id")
	}
	w.UpdatedAt = now()
	return s.write(dirWorks, idName(w.ID), w)
}

func (s *YAMLStore) SavePerformance(_ context.Context, p model.Performance) error {
	if p.ID == 0 {
		return eris.New("yaml: save performance without id")
	}
	p.UpdatedAt = now()
	return s.write(dirPerformances, idName(p.ID), p)
}

func (s *YAMLStore) SaveEpisode(_ context.Context, e model.Episode) error {
	if e.PrfID == "" {
		return eris.New("yaml: save episode without prf id")
	}
	e.UpdatedAt = now()
	return s.write(dirEpisodes, e.PrfID, e)
}

func (s *YAMLStore) DeletePerson(_ context.Context, id int64) error {
	return s.remove(dirPersons, idName(id))
}

func (s *YAMLStore) DeleteWork(_ context.Context, id int64) error {
	return s.remove(dirWorks, idName(id))
}

func (s *YAMLStore) DeletePerformance(_ context.Context, id int64) error {
	return s.remove(dirPerformances, idName(id))
}

func (s *YAMLStore) DeleteEpisode(_ context.Context, prfID string) error {
	return s.remove(dirEpisodes, prfID)
}

// NextID takes the larger of the stored counter and the highest id on disk,
// so ids freed by a delete are never handed out again.
func (s *YAMLStore) NextID(_ context.Context, kind model.EntityKind) (int64, error) {
	var dir string
	switch kind {
	case model.KindPerson:
		dir = dirPersons
	case model.KindWork:
		dir = dirWorks
	case model.KindPerformance:
		dir = dirPerformances
	default:
		return 0, eris.Errorf("yaml: no numeric ids for %s", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	counters := make(map[model.EntityKind]int64)
	err := readYAML(filepath.Join(s.root, fileCounters+".yaml"), &counters)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	entries, err := os.ReadDir(s.dir(dir))
	if err != nil && !os.IsNotExist(err) {
		return 0, eris.Wrapf(err, "yaml: read %s", dir)
	}
	maxID := counters[kind]
	for _, e := range entries {
		id, err := strconv.ParseInt(strings.TrimSuffix(e.Name(), ".yaml"), 10, 64)
		if err != nil {
			continue
		}
		maxID = max(maxID, id)
	}
	counters[kind] = maxID + 1
	if err := s.writeLocked("", fileCounters, counters); err != nil {
		return 0, err
	}
	return maxID + 1, nil
}

func (s *YAMLStore) EnqueueReview(ctx context.Context, item model.ReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := loadDir[model.ReviewItem](ctx, s.dir(dirReview))
	if err != nil {
		return err
	}
	fp := item.Fingerprint()
	for _, it := range existing {
		if it.Fingerprint() == fp {
			return nil
		}
	}
	item = prepareReview(item)
	return s.writeLocked(dirReview, item.ID, item)
}

func (s *YAMLStore) ListReview(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	items, err := loadDir[model.ReviewItem](ctx, s.dir(dirReview))
	if err != nil {
		return nil, err
	}
	return filterReviews(items, filter), nil
}

func (s *YAMLStore) ResolveReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validName(id); err != nil {
		return err
	}
	var item model.ReviewItem
	if err := readYAML(filepath.Join(s.dir(dirReview), id+".yaml"), &item); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(model.ErrNotFound, "yaml: review item %s", id)
		}
		return err
	}
	t := now()
	item.ResolvedAt = &t
	return s.writeLocked(dirReview, id, item)
}

func (s *YAMLStore) dir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *YAMLStore) write(dir, name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(dir, name, v)
}

func (s *YAMLStore) writeLocked(dir, name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "yaml: marshal %s/%s", dir, name)
	}
	path := filepath.Join(s.dir(dir), name+".yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "yaml: create %s", dir)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "yaml: temp file for %s/%s", dir, name)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "yaml: write %s/%s", dir, name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "yaml: close %s/%s", dir, name)
	}
	return eris.Wrapf(os.Rename(tmp.Name(), path), "yaml: rename %s/%s", dir, name)
}

func (s *YAMLStore) remove(dir, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(filepath.Join(s.dir(dir), name+".yaml"))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "yaml: delete %s/%s", dir, name)
	}
	return nil
}

func loadDir[T any](ctx context.Context, dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "yaml: read %s", dir)
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var v T
		if err := readYAML(filepath.Join(dir, e.Name()), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "yaml: read %s", path)
	}
	return eris.Wrapf(yaml.Unmarshal(data, v), "yaml: decode %s", path)
}

// validName accepts only a single visible path element; loadDir skips
// dotfiles.
func validName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) ||
		filepath.Base(name) != name {
		return eris.Errorf("yaml: invalid record id %q", name)
	}
	return nil
}

func idName(id int64) string {
	return strconv.FormatInt(id, 10)
}
