package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DefaultNoDataValue is written for non-finite cells when the caller does
// not choose a NODATA_value of its own.
const DefaultNoDataValue = -9999

// MaxESRICells bounds nrows*ncols for a decoded grid.
const MaxESRICells = 1 << 30

// ReadESRIASCII decodes an ESRI ASCII grid. Cells equal to NODATA_value
// become NaN. Both the corner and centre variants of the lower-left origin
// are accepted, as is the dx/dy extension for non-square cells.
func ReadESRIASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("esri ascii: header %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("esri ascii: header %q: %w", key, err)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("esri ascii: %w", err)
	}

	ncols, okc := header["ncols"]
	nrows, okr := header["nrows"]
	if !okc || !okr {
		return nil, invalidGridf("esri ascii header missing ncols/nrows")
	}
	if !isCount(ncols) || !isCount(nrows) {
		return nil, invalidGridf("esri ascii dimensions must be positive integers, got %gx%g", nrows, ncols)
	}
	if nrows*ncols > MaxESRICells {
		return nil, invalidGridf("esri ascii grid %gx%g exceeds %d cells", nrows, ncols, MaxESRICells)
	}
	cols, rows := int(ncols), int(nrows)

	dx, dy := header["cellsize"], header["cellsize"]
	if v, ok := header["dx"]; ok {
		dx = v
	}
	if v, ok := header["dy"]; ok {
		dy = v
	}

	var xll, yll float64
	switch {
	case has(header, "xllcorner") && has(header, "yllcorner"):
		xll, yll = header["xllcorner"], header["yllcorner"]
	case has(header, "xllcenter") && has(header, "yllcenter"):
		xll, yll = header["xllcenter"]-dx/2, header["yllcenter"]-dy/2
	default:
		return nil, invalidGridf("esri ascii header missing lower-left origin")
	}

	nodata, hasNoData := header["nodata_value"]

	var data []float64
	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("esri ascii: cell %d: %w", len(data), err)
		}
		if hasNoData && v == nodata {
			v = math.NaN()
		}
		data = append(data, v)
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, err
		}
	}
	for len(data) < rows*cols && sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("esri ascii: %w", err)
	}
	if len(data) != rows*cols {
		return nil, invalidGridf("esri ascii has %d cells, want %d", len(data), rows*cols)
	}

	tr := Transform{OriginX: xll, OriginY: yll + float64(rows)*dy, DX: dx, DY: dy}
	return NewGridFromSlice(rows, cols, data, tr)
}

// WriteESRIASCII encodes g as an ESRI ASCII grid, writing non-finite cells
// as nodata.
func WriteESRIASCII(w io.Writer, g *Grid, nodata float64) error {
	bw := bufio.NewWriter(w)
	tr := g.Transform()
	rows, cols := g.Dims()

	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", cols, rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n",
		formatFloat(tr.OriginX), formatFloat(tr.OriginY-float64(rows)*tr.DY))
	if tr.DX == tr.DY {
		fmt.Fprintf(bw, "cellsize %s\n", formatFloat(tr.DX))
	} else {
		fmt.Fprintf(bw, "dx %s\ndy %s\n", formatFloat(tr.DX), formatFloat(tr.DY))
	}
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(nodata))

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			v := g.at(r, c)
			if !finite(v) {
				v = nodata
			}
			bw.WriteString(formatFloat(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// isCount reports whether v is a positive whole number small enough to
// convert to int without loss.
func isCount(v float64) bool {
	return v >= 1 && v <= MaxESRICells && v == math.Trunc(v)
}

func has(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
