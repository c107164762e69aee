package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/sbinet/npyio"
	"github.com/x448/float16"
	"gopkg.in/yaml.v3"

	"batchscore/internal/contract"
)

// metaDoc is the structured half of the legacy layout.
type metaDoc struct {
	NumCols  []string `yaml:"num_cols"`
	InputDim *number  `yaml:"input_dim"`
	NClasses *number  `yaml:"n_classes"`
}

// legacyDoc pairs meta.json with the flat mean/std arrays of normalizer.npz.
// The arrays are positional; there is no clipping in this layout.
type legacyDoc struct {
	meta      metaDoc
	mean, std []float64
	files     []string
}

func parseMeta(raw []byte, path string) (metaDoc, error) {
	var m metaDoc
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: parse %s: %v", contract.ErrSchemaMismatch, path, err)
	}
	var missing []string
	if m.NumCols == nil {
		missing = append(missing, "num_cols")
	}
	if m.InputDim == nil {
		missing = append(missing, "input_dim")
	}
	if m.NClasses == nil {
		missing = append(missing, "n_classes")
	}
	if len(missing) > 0 {
		return m, fmt.Errorf("%w: %s lacks required keys %v", contract.ErrSchemaMismatch, path, missing)
	}
	return m, nil
}

func (d *legacyDoc) contract() (*contract.Contract, error) {
	n := len(d.meta.NumCols)
	if len(d.mean) != n || len(d.std) != n {
		return nil, &contract.ShapeError{Mean: []int{len(d.mean)}, Std: []int{len(d.std)}, Columns: n}
	}
	inputDim, err := d.meta.InputDim.integer("input_dim")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrSchemaMismatch, d.files[0], err)
	}
	nClasses, err := d.meta.NClasses.integer("n_classes")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrSchemaMismatch, d.files[0], err)
	}
	return &contract.Contract{
		FeatureColumns: append([]string(nil), d.meta.NumCols...),
		Mean:           toFloat32(d.mean),
		Std:            toFloat32(d.std),
		InputDim:       inputDim,
		NClasses:       nClasses,
		Layout:         contract.LayoutLegacy,
		Files:          append([]string(nil), d.files...),
	}, nil
}

// readNormalizer extracts the "mean" and "std" members of an .npz archive,
// flattened regardless of their stored shape.
func readNormalizer(raw []byte, name string) (mean, std []float64, err error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", contract.ErrSchemaMismatch, name, err)
	}
	members := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		members[strings.TrimSuffix(path.Base(f.Name), ".npy")] = f
	}
	load := func(key string) ([]float64, error) {
		f, ok := members[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no array %q (arrays: %s)",
				contract.ErrSchemaMismatch, name, key, strings.Join(sortedKeys(members), ", "))
		}
		vals, err := readArray(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%s]: %v", contract.ErrSchemaMismatch, name, key, err)
		}
		return vals, nil
	}
	if mean, err = load("mean"); err != nil {
		return nil, nil, err
	}
	if std, err = load("std"); err != nil {
		return nil, nil, err
	}
	return mean, std, nil
}

// readArray decodes one .npy member of any numeric dtype, widened to
// float64 and flattened.
func readArray(f *zip.File) ([]float64, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	r, err := npyio.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	dtype := r.Header.Descr.Type
	if len(dtype) < 3 {
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
	switch dtype[1:] {
	case "f8":
		return widen[float64](r)
	case "f4":
		return widen[float32](r)
	case "f2":
		return halfFloats(raw, dtype[0], elements(r.Header.Descr.Shape))
	case "i8":
		return widen[int64](r)
	case "i4":
		return widen[int32](r)
	case "i2":
		return widen[int16](r)
	case "i1":
		return widen[int8](r)
	case "u8":
		return widen[uint64](r)
	case "u4":
		return widen[uint32](r)
	case "u2":
		return widen[uint16](r)
	case "u1":
		return widen[uint8](r)
	}
	return nil, fmt.Errorf("unsupported dtype %q", dtype)
}

type numeric interface {
	~float64 | ~float32 | ~int64 | ~int32 | ~int16 | ~int8 |
		~uint64 | ~uint32 | ~uint16 | ~uint8
}

func widen[T numeric](r *npyio.Reader) ([]float64, error) {
	var vs []T
	if err := r.Read(&vs); err != nil {
		return nil, err
	}
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out, nil
}

// halfFloats decodes the trailing n float16 values of a raw .npy member;
// npyio has no float16 support.
func halfFloats(raw []byte, order byte, n int) ([]float64, error) {
	if len(raw) < 2*n {
		return nil, fmt.Errorf("float16 array truncated: %d bytes for %d values", len(raw), n)
	}
	data := raw[len(raw)-2*n:]
	var bo binary.ByteOrder = binary.LittleEndian
	if order == '>' {
		bo = binary.BigEndian
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(float16.Frombits(bo.Uint16(data[2*i:])).Float32())
	}
	return out, nil
}

func elements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func toFloat32(vs []float64) []float32 {
	out := make([]float32, len(vs))
	for i, v := range vs {
		out[i] = float32(v)
	}
	return out
}

func sortedKeys(m map[string]*zip.File) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
