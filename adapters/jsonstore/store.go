// Package jsonstore reads and writes simulation datasets as JSON documents of
// the form {"variables": {"<name>": {"shape": [...], "axes": [...], "data": [...]}}}
// with data in row-major order and axes optional.
package jsonstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"abmviz/domain/dataset"
	"abmviz/domain/tensor"
	"abmviz/internal"
	"abmviz/internal/errors"
	"abmviz/ports"
)

// Extension is appended to dataset names to form file names
const Extension = ".json"

type document struct {
	Variables map[string]variable `json:"variables"`
}

type variable struct {
	Shape []int        `json:"shape"`
	Axes  []tensor.Dim `json:"axes,omitempty"`
	Data  []float64    `json:"data"`
}

// Store keeps datasets as files in one directory
type Store struct {
	dir    string
	logger *internal.Logger
}

var (
	_ ports.DatasetLoader = (*Store)(nil)
	_ ports.DatasetWriter = (*Store)(nil)
)

// NewStore creates a store rooted at dir
func NewStore(dir string, logger *internal.Logger) *Store {
	return &Store{dir: dir, logger: logger.OrDefault()}
}

// Path returns the file a dataset name maps to
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+Extension)
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.InvalidInput(fmt.Sprintf("invalid dataset name %q", name))
	}
	return nil
}

// Load reads the dataset stored under name. Variables are added in name order.
func (s *Store) Load(ctx context.Context, name string) (*dataset.Dataset, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	path := s.Path(name)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.LoadError(path, err)
	}
	defer f.Close()

	var doc document
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&doc); err != nil {
		return nil, errors.LoadError(path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds := dataset.New(name)
	names := make([]string, 0, len(doc.Variables))
	for n := range doc.Variables {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		v := doc.Variables[n]
		arr, err := tensor.FromData(v.Shape, v.Data)
		if err != nil {
			return nil, errors.LoadError(path, fmt.Errorf("variable %s: %w", n, err))
		}
		if len(v.Axes) > 0 {
			if arr, err = arr.WithAxes(v.Axes...); err != nil {
				return nil, errors.LoadError(path, fmt.Errorf("variable %s: %w", n, err))
			}
		}
		if err := ds.Put(n, arr); err != nil {
			return nil, errors.LoadError(path, err)
		}
	}
	s.logger.Debug("[JSONStore] loaded %s: %d variables", path, ds.Len())
	return ds, nil
}

// Peek lists variable names, shapes and tags without decoding array data
func (s *Store) Peek(ctx context.Context, name string) ([]ports.VariableInfo, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	path := s.Path(name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.LoadError(path, err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.LoadError(path, fmt.Errorf("not a valid JSON document"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vars := gjson.GetBytes(raw, "variables")
	if !vars.IsObject() {
		return nil, errors.LoadError(path, fmt.Errorf("missing variables object"))
	}

	var out []ports.VariableInfo
	vars.ForEach(func(key, value gjson.Result) bool {
		info := ports.VariableInfo{Name: key.String()}
		for _, n := range value.Get("shape").Array() {
			info.Shape = append(info.Shape, int(n.Int()))
		}
		for _, a := range value.Get("axes").Array() {
			info.Axes = append(info.Axes, a.String())
		}
		out = append(out, info)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save writes ds to its file, creating the directory when needed
func (s *Store) Save(ctx context.Context, ds *dataset.Dataset) error {
	if err := checkName(ds.Name()); err != nil {
		return err
	}
	doc := document{Variables: make(map[string]variable, ds.Len())}
	for _, n := range ds.Names() {
		arr, _ := ds.Get(n)
		doc.Variables[n] = variable{Shape: arr.Shape(), Axes: arr.Axes(), Data: arr.Data()}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.ExportError(s.dir, err)
	}
	path := s.Path(ds.Name())
	f, err := os.Create(path)
	if err != nil {
		return errors.ExportError(path, err)
	}
	w := bufio.NewWriter(f)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		f.Close()
		return errors.ExportError(path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.ExportError(path, err)
	}
	if err := f.Close(); err != nil {
		return errors.ExportError(path, err)
	}
	s.logger.Info("[JSONStore] wrote %s (%d variables)", path, ds.Len())
	return nil
}
