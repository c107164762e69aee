// Package artifact locates and parses the on-disk training artifacts: the
// preprocessing contract, in one of two layouts, and the trained model file.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"batchscore/internal/contract"
)

// Files names the artifacts inside the models directory.
type Files struct {
	Prepro     string
	Meta       string
	Normalizer string
	// ModelCandidates is searched in order; the first existing file wins.
	ModelCandidates []string
}

// DefaultFiles matches what the training side writes.
func DefaultFiles() Files {
	return Files{
		Prepro:          "prepro.json",
		Meta:            "meta.json",
		Normalizer:      "normalizer.npz",
		ModelCandidates: []string{"mlp_best.json", "mlp_final.json"},
	}
}

// document is one parsed artifact layout, reduced to a Contract exactly once.
type document interface {
	contract() (*contract.Contract, error)
}

type Resolver struct {
	fsys  fs.FS
	dir   string
	files Files
}

// New reads artifacts from dir on the local filesystem.
func New(dir string, files Files) *Resolver {
	return NewFS(os.DirFS(dir), dir, files)
}

// NewFS reads artifacts from fsys; dir is only used to render paths in
// errors and logs.
func NewFS(fsys fs.FS, dir string, files Files) *Resolver {
	return &Resolver{fsys: fsys, dir: dir, files: files}
}

// Resolve builds the preprocessing contract. The prepro document is used
// whenever it exists; the meta + normalizer pair is only consulted when it
// does not.
func (r *Resolver) Resolve() (*contract.Contract, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	c, err := doc.contract()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Resolver) load() (document, error) {
	ok, err := r.exists(r.files.Prepro)
	if err != nil {
		return nil, err
	}
	if ok {
		raw, err := fs.ReadFile(r.fsys, r.files.Prepro)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.display(r.files.Prepro), err)
		}
		return parsePrepro(raw, r.display(r.files.Prepro))
	}

	metaOK, err := r.exists(r.files.Meta)
	if err != nil {
		return nil, err
	}
	normOK, err := r.exists(r.files.Normalizer)
	if err != nil {
		return nil, err
	}
	if !metaOK || !normOK {
		return nil, &contract.NotFoundError{
			What: "preprocessing artifacts",
			Searched: []string{
				r.display(r.files.Prepro),
				r.display(r.files.Meta) + " + " + r.display(r.files.Normalizer),
			},
		}
	}

	rawMeta, err := fs.ReadFile(r.fsys, r.files.Meta)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.display(r.files.Meta), err)
	}
	meta, err := parseMeta(rawMeta, r.display(r.files.Meta))
	if err != nil {
		return nil, err
	}
	rawNorm, err := fs.ReadFile(r.fsys, r.files.Normalizer)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.display(r.files.Normalizer), err)
	}
	mean, std, err := readNormalizer(rawNorm, r.display(r.files.Normalizer))
	if err != nil {
		return nil, err
	}
	return &legacyDoc{
		meta:  meta,
		mean:  mean,
		std:   std,
		files: []string{r.display(r.files.Meta), r.display(r.files.Normalizer)},
	}, nil
}

// LocateModel returns the path of the first model candidate that exists.
func (r *Resolver) LocateModel() (string, error) {
	searched := make([]string, 0, len(r.files.ModelCandidates))
	for _, name := range r.files.ModelCandidates {
		ok, err := r.exists(name)
		if err != nil {
			return "", err
		}
		if ok {
			return r.display(name), nil
		}
		searched = append(searched, r.display(name))
	}
	return "", &contract.NotFoundError{What: "trained model", Searched: searched}
}

func (r *Resolver) exists(name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	info, err := fs.Stat(r.fsys, name)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", r.display(name), err)
	}
}

func (r *Resolver) display(name string) string {
	if r.dir == "" {
		return name
	}
	return filepath.Join(r.dir, name)
}
