package pmvs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// tokenReader pulls whitespace-delimited tokens off r, matching how the
// reference patch file format is whitespace-separated across lines and
// fields alike.
type tokenReader struct {
	sc *bufio.Scanner
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)
	return &tokenReader{sc: sc}
}

func (t *tokenReader) word() (string, error) {
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return t.sc.Text(), nil
}

func (t *tokenReader) float() (float64, error) {
	s, err := t.word()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func (t *tokenReader) int() (int, error) {
	s, err := t.word()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (t *tokenReader) floats(n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		v, err := t.float()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t *tokenReader) ints(n int) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		v, err := t.int()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadPatch parses one ASCII patch record from r: the current PATCHS
// header, or the legacy PATCHA header. Per spec.md 6 (and patch.cc's
// operator>>), PATCHA's extra int type + Vec4f direction fields come
// after coord/normal/ncc/dscale/ascale, not immediately after the header,
// and are parsed and discarded.
func ReadPatch(r io.Reader) (Patch, error) {
	var p Patch
	t := newTokenReader(r)

	header, err := t.word()
	if err != nil {
		return p, err
	}
	switch header {
	case "PATCHS", "PATCHA":
	default:
		return p, fmt.Errorf("pmvs: unrecognized patch header %q", header)
	}

	coord, err := t.floats(4)
	if err != nil {
		return p, fmt.Errorf("pmvs: read coord: %w", err)
	}
	p.Coord = Vec4{coord[0], coord[1], coord[2], coord[3]}

	normal, err := t.floats(4)
	if err != nil {
		return p, fmt.Errorf("pmvs: read normal: %w", err)
	}
	p.Normal = Vec4{normal[0], normal[1], normal[2], normal[3]}

	scalars, err := t.floats(3)
	if err != nil {
		return p, fmt.Errorf("pmvs: read ncc/dscale/ascale: %w", err)
	}
	p.NCC, p.DScale, p.AScale = scalars[0], scalars[1], scalars[2]

	if header == "PATCHA" {
		if _, err := t.int(); err != nil {
			return p, fmt.Errorf("pmvs: read legacy patch type: %w", err)
		}
		if _, err := t.floats(4); err != nil {
			return p, fmt.Errorf("pmvs: read legacy patch direction: %w", err)
		}
	}

	nImages, err := t.int()
	if err != nil {
		return p, fmt.Errorf("pmvs: read image count: %w", err)
	}
	if p.Images, err = t.ints(nImages); err != nil {
		return p, fmt.Errorf("pmvs: read images: %w", err)
	}

	nVImages, err := t.int()
	if err != nil {
		return p, fmt.Errorf("pmvs: read vimage count: %w", err)
	}
	if p.VImages, err = t.ints(nVImages); err != nil {
		return p, fmt.Errorf("pmvs: read vimages: %w", err)
	}

	return p, nil
}

// WritePatch writes p in the current PATCHS ASCII format.
func WritePatch(w io.Writer, p Patch) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "PATCHS")
	fmt.Fprintf(bw, "%g %g %g %g\n", p.Coord.X, p.Coord.Y, p.Coord.Z, p.Coord.W)
	fmt.Fprintf(bw, "%g %g %g %g\n", p.Normal.X, p.Normal.Y, p.Normal.Z, p.Normal.W)
	fmt.Fprintf(bw, "%g %g %g\n", p.NCC, p.DScale, p.AScale)
	writeIntLine(bw, p.Images)
	writeIntLine(bw, p.VImages)
	return bw.Flush()
}

func writeIntLine(w *bufio.Writer, vals []int) {
	fmt.Fprintln(w, len(vals))
	for i, v := range vals {
		if i > 0 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprint(w, v)
	}
	fmt.Fprintln(w)
}

// Point is a sparse seed feature record (the POINT0 format of spec.md 6),
// external to the patch cloud proper but sharing its ASCII container.
type Point struct {
	U, V     float64
	Response float64
	Type     int
}

// ReadPoint parses one POINT0 record: "u v response type".
func ReadPoint(r io.Reader) (Point, error) {
	var pt Point
	t := newTokenReader(r)
	header, err := t.word()
	if err != nil {
		return pt, err
	}
	if header != "POINT0" {
		return pt, fmt.Errorf("pmvs: unrecognized point header %q", header)
	}
	if pt.U, err = t.float(); err != nil {
		return pt, fmt.Errorf("pmvs: read point u: %w", err)
	}
	if pt.V, err = t.float(); err != nil {
		return pt, fmt.Errorf("pmvs: read point v: %w", err)
	}
	if pt.Response, err = t.float(); err != nil {
		return pt, fmt.Errorf("pmvs: read point response: %w", err)
	}
	if pt.Type, err = t.int(); err != nil {
		return pt, fmt.Errorf("pmvs: read point type: %w", err)
	}
	return pt, nil
}

// WritePoint writes pt in the POINT0 ASCII format.
func WritePoint(w io.Writer, pt Point) error {
	_, err := fmt.Fprintf(w, "POINT0\n%g %g %g %d\n", pt.U, pt.V, pt.Response, pt.Type)
	return err
}
