// Package pubjoin implements the public join and public intersection
// protocols between two parties.  Each party holds its rows in the
// clear.  The server matches the key columns of both parties and tells
// the client which of its rows take part, so neither party learns the
// other's non-key columns.
//
// Relations travel as an int32 element count followed by the elements
// in row-major order, each a little-endian int32.
package pubjoin

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
)

var ErrOverflow = errors.New("value does not fit in int32")

// WriteRel writes rel to w.  All rows of rel must have the same width.
func WriteRel(w io.Writer, rel [][]int64) error {
	var width int
	if len(rel) != 0 {
		width = len(rel[0])
	}
	n := len(rel) * width
	if n > math.MaxInt32 {
		return fmt.Errorf("relation of %d elements: %w", n, ErrOverflow)
	}
	buf := make([]byte, 4+4*n)
	binary.LittleEndian.PutUint32(buf, uint32(n))
	off := 4
	for _, row := range rel {
		if len(row) != width {
			return fmt.Errorf("ragged relation: row of width %d, expected %d", len(row), width)
		}
		for _, v := range row {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("%w: %d", ErrOverflow, v)
			}
			binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
			off += 4
		}
	}
	_, err := w.Write(buf)
	return err
}

// readChunk bounds the bytes ReadRel buffers at once so that the
// element count a peer sends does not size any allocation.
const readChunk = 64 * 1024

// ReadRel reads a relation of ncols columns from r.
func ReadRel(r io.Reader, ncols int) ([][]int64, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := int(int32(binary.LittleEndian.Uint32(hdr[:])))
	if n < 0 || ncols <= 0 || n%ncols != 0 {
		return nil, fmt.Errorf("cannot read %d elements into %d columns", n, ncols)
	}
	rowSize := 4 * ncols
	nrows := n / ncols
	chunkRows := max(1, readChunk/rowSize)
	buf := make([]byte, min(nrows, chunkRows)*rowSize)
	rel := make([][]int64, 0, min(nrows, chunkRows))
	for nrows > 0 {
		rows := min(nrows, chunkRows)
		chunk := buf[:rows*rowSize]
		if _, err := io.ReadFull(r, chunk); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		for off := 0; off < len(chunk); off += rowSize {
			row := make([]int64, ncols)
			for k := range row {
				row[k] = int64(int32(binary.LittleEndian.Uint32(chunk[off+4*k:])))
			}
			rel = append(rel, row)
		}
		nrows -= rows
	}
	return rel, nil
}

// Keys returns column col of rel.
func Keys(rel [][]int64, col int) []int64 {
	keys := make([]int64, 0, len(rel))
	for _, row := range rel {
		keys = append(keys, row[col])
	}
	return keys
}

func column(vals []int64) [][]int64 {
	rel := make([][]int64, 0, len(vals))
	for _, v := range vals {
		rel = append(rel, []int64{v})
	}
	return rel
}

// A Match pairs a server row with a client row that has the same key.
type Match struct {
	Key    int64
	Server int
	Client int
}

// Matches joins the server keys with the client keys.  The matches are
// ordered by key, then by client row, then by server row.
func Matches(server, client []int64) []Match {
	rows := make(map[int64][]int)
	for k, key := range server {
		rows[key] = append(rows[key], k)
	}
	var matches []Match
	for c, key := range client {
		for _, s := range rows[key] {
			matches = append(matches, Match{Key: key, Server: s, Client: c})
		}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return matches
}

// Owner identifies the party holding a row in a part join.
const (
	ServerOwner = 0
	ClientOwner = 1
)

// A Row locates a row of one of the two parties.
type Row struct {
	Idx   int
	Owner int
}

// A PartMatch pairs a row of the left relation with a row of the right
// relation when each relation is split between the two parties.
type PartMatch struct {
	Key   int64
	Left  Row
	Right Row
}

type ownedKey struct {
	row Row
	key int64
}

func owned(server, client []int64) []ownedKey {
	out := make([]ownedKey, 0, len(server)+len(client))
	for k, key := range server {
		out = append(out, ownedKey{Row{k, ServerOwner}, key})
	}
	for k, key := range client {
		out = append(out, ownedKey{Row{k, ClientOwner}, key})
	}
	return out
}

// PartMatches joins the left relation with the right relation, each
// given as the keys held by the server followed by the keys held by the
// client.  The matches are ordered by key.
func PartMatches(serverLeft, serverRight, clientLeft, clientRight []int64) []PartMatch {
	rows := make(map[int64][]Row)
	for _, l := range owned(serverLeft, clientLeft) {
		rows[l.key] = append(rows[l.key], l.row)
	}
	var matches []PartMatch
	for _, r := range owned(serverRight, clientRight) {
		for _, l := range rows[r.key] {
			matches = append(matches, PartMatch{Key: r.key, Left: l, Right: r.row})
		}
	}
	slices.SortStableFunc(matches, func(a, b PartMatch) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return matches
}

func indexRel(matches []PartMatch) [][]int64 {
	rel := make([][]int64, 0, len(matches))
	for _, m := range matches {
		rel = append(rel, []int64{int64(m.Left.Idx), int64(m.Left.Owner), int64(m.Right.Idx), int64(m.Right.Owner)})
	}
	return rel
}

func partMatches(rel [][]int64) []PartMatch {
	matches := make([]PartMatch, 0, len(rel))
	for _, row := range rel {
		matches = append(matches, PartMatch{
			Left:  Row{int(row[0]), int(row[1])},
			Right: Row{int(row[2]), int(row[3])},
		})
	}
	return matches
}

// Reconstruct builds the share of the part join held by party me.  Each
// row is the right key followed by the non-key columns of the left row
// and of the right row.  Where me does not own a side its columns are
// all ones, so the element-wise product of the two parties' results is
// the join.
func Reconstruct(left, right [][]int64, leftKey, rightKey, leftWidth, rightWidth int, matches []PartMatch, me int) ([][]int64, error) {
	leftDummy, rightDummy := ones(leftWidth), ones(rightWidth)
	out := make([][]int64, 0, len(matches))
	for _, m := range matches {
		l, err := side(left, m.Left, me, leftDummy)
		if err != nil {
			return nil, err
		}
		r, err := side(right, m.Right, me, rightDummy)
		if err != nil {
			return nil, err
		}
		row := make([]int64, 0, leftWidth+rightWidth-1)
		row = append(row, r[rightKey])
		row = appendExcept(row, l, leftKey)
		row = appendExcept(row, r, rightKey)
		out = append(out, row)
	}
	return out, nil
}

func ones(n int) []int64 {
	row := make([]int64, n)
	for k := range row {
		row[k] = 1
	}
	return row
}

func side(rel [][]int64, r Row, me int, dummy []int64) ([]int64, error) {
	if r.Owner != me {
		return dummy, nil
	}
	if r.Idx < 0 || r.Idx >= len(rel) {
		return nil, fmt.Errorf("row index %d out of range for %d rows", r.Idx, len(rel))
	}
	return rel[r.Idx], nil
}

func appendExcept(dst, row []int64, skip int) []int64 {
	for k, v := range row {
		if k != skip {
			dst = append(dst, v)
		}
	}
	return dst
}

// Intersect returns the distinct keys present in both a and b in
// ascending order.
func Intersect(a, b []int64) []int64 {
	in := make(map[int64]bool, len(b))
	for _, k := range b {
		in[k] = true
	}
	var out []int64
	for _, k := range a {
		if in[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func pick(rel [][]int64, idx []int) ([][]int64, error) {
	out := make([][]int64, 0, len(idx))
	for _, k := range idx {
		if k < 0 || k >= len(rel) {
			return nil, fmt.Errorf("row index %d out of range for %d rows", k, len(rel))
		}
		out = append(out, rel[k])
	}
	return out, nil
}
