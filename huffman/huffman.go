// Package huffman builds canonical, length-limited Huffman codes over a
// byte alphabet and implements the per-chaos-bin EntropyEncoder contract
// of spec.md §6 (add/finalize/writeTables/write/simulate/reset).
//
// The table construction follows the canonical-code recipe of
// DaanV2-go-webp/pkg/huffman/build.go (histogram of code lengths, offsets
// by length, symbols sorted within each length) without that file's
// root/second-level table split, which exists there only to serve VP8L's
// multi-thousand-symbol green alphabet; every alphabet here fits in a
// byte, so a flat canonical table is enough.
package huffman

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/pixelloom/spryte/bitio"
)

// MaxCodeLength bounds the length of any generated code. 24 is comfortably
// above what a 256-symbol alphabet with realistic residual distributions
// ever needs, and keeps WriteBits calls (n<=32) safe with room to spare.
const MaxCodeLength = 24

// AlphabetSize is the number of symbols an EntropyEncoder can hold: every
// residual and index stream in this format is a single byte.
const AlphabetSize = 256

// Code is one entry of a canonical Huffman table.
type Code struct {
	Bits uint32
	Len  uint8
}

// heapNode is a node of the Huffman merge tree; leaves carry a symbol,
// internal nodes carry left/right children.
type heapNode struct {
	freq        uint64
	symbol      int // -1 for internal nodes
	left, right *heapNode
	order       int // insertion order, for stable tie-breaking
}

type nodeHeap []*heapNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].order < h[j].order
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*heapNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BuildLengths computes a code length per symbol from a frequency table,
// zero for symbols with zero frequency, capped at MaxCodeLength. Ties are
// broken by symbol order so the same multiset of frequencies always
// yields the same lengths (spec.md §8: "Order-independence of Huffman
// finalize").
func BuildLengths(freqs []uint64) ([]uint8, error) {
	n := len(freqs)
	lengths := make([]uint8, n)

	var used []int
	for i, f := range freqs {
		if f > 0 {
			used = append(used, i)
		}
	}
	if len(used) == 0 {
		return lengths, nil
	}
	if len(used) == 1 {
		lengths[used[0]] = 1
		return lengths, nil
	}

	h := &nodeHeap{}
	heap.Init(h)
	order := 0
	for _, sym := range used {
		heap.Push(h, &heapNode{freq: freqs[sym], symbol: sym, order: order})
		order++
	}
	for h.Len() > 1 {
		a := heap.Pop(h).(*heapNode)
		b := heap.Pop(h).(*heapNode)
		parent := &heapNode{freq: a.freq + b.freq, symbol: -1, left: a, right: b, order: order}
		order++
		heap.Push(h, parent)
	}
	root := heap.Pop(h).(*heapNode)

	var walk func(n *heapNode, depth int)
	walk = func(n *heapNode, depth int) {
		if n.symbol >= 0 {
			lengths[n.symbol] = uint8(depth)
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)

	limitLengths(lengths, used)
	return lengths, nil
}

// limitLengths enforces MaxCodeLength via a reflow: symbols whose length
// exceeds the cap are pulled down to the cap, the shortest codes are then
// lengthened until the Kraft sum no longer exceeds 1, and the longest codes
// are shortened again until it is exactly 1, preserving unique
// decodability. Ties broken by symbol order, per
// spec.md's determinism requirement.
func limitLengths(lengths []uint8, used []int) {
	overflow := false
	for _, s := range used {
		if lengths[s] > MaxCodeLength {
			overflow = true
			break
		}
	}
	if !overflow {
		return
	}

	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })

	for _, s := range used {
		if lengths[s] > MaxCodeLength {
			lengths[s] = MaxCodeLength
		}
	}

	// Kraft-McMillan budget in units of 2^-MaxCodeLength.
	var budget int64
	unit := int64(1) << MaxCodeLength
	for _, s := range used {
		budget += unit >> lengths[s]
	}
	full := unit
	for budget > full {
		// Find the shortest code among symbols not yet at MaxCodeLength and
		// lengthen it by one, shrinking the Kraft sum.
		sort.Slice(used, func(i, j int) bool {
			if lengths[used[i]] != lengths[used[j]] {
				return lengths[used[i]] < lengths[used[j]]
			}
			return used[i] < used[j]
		})
		for _, s := range used {
			if lengths[s] < MaxCodeLength {
				lengths[s]++
				budget -= unit >> lengths[s]
				break
			}
		}
	}
	for budget < full {
		sort.Slice(used, func(i, j int) bool {
			if lengths[used[i]] != lengths[used[j]] {
				return lengths[used[i]] > lengths[used[j]]
			}
			return used[i] < used[j]
		})
		for _, s := range used {
			if lengths[s] > 1 {
				budget -= unit >> lengths[s]
				lengths[s]--
				budget += unit >> lengths[s]
				break
			}
		}
	}
}

// BuildCanonicalCodes assigns canonical codes to a set of code lengths:
// symbols are ordered first by length then by symbol value, and codes
// increment within a length, per DaanV2-go-webp/pkg/huffman/build.go's
// "sort by length, by symbol order within each length" offset table.
func BuildCanonicalCodes(lengths []uint8) []Code {
	n := len(lengths)
	codes := make([]Code, n)

	const maxLen = MaxCodeLength
	var countByLen [maxLen + 1]int
	for _, l := range lengths {
		if l > 0 {
			countByLen[l]++
		}
	}

	var firstCode [maxLen + 2]uint32
	code := uint32(0)
	for l := 1; l <= maxLen; l++ {
		firstCode[l] = code
		code = (code + uint32(countByLen[l])) << 1
	}

	next := firstCode
	type symLen struct {
		sym int
		len uint8
	}
	var syms []symLen
	for s, l := range lengths {
		if l > 0 {
			syms = append(syms, symLen{s, l})
		}
	}
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].len != syms[j].len {
			return syms[i].len < syms[j].len
		}
		return syms[i].sym < syms[j].sym
	})
	for _, sl := range syms {
		codes[sl.sym] = Code{Bits: next[sl.len], Len: sl.len}
		next[sl.len]++
	}
	return codes
}

// EntropyEncoder codes symbols from one byte alphabet under one Huffman
// table. It implements the collaborator contract of spec.md §6: add
// symbols during a design pass, finalize to build tables, then either
// simulate (cost only) or write (cost + emit) each symbol, and reset to
// reuse the encoder for another tile/plane.
type EntropyEncoder struct {
	freqs   [AlphabetSize]uint64
	lengths []uint8
	codes   []Code
	built   bool
}

// NewEntropyEncoder returns an encoder with an empty histogram.
func NewEntropyEncoder() *EntropyEncoder {
	return &EntropyEncoder{}
}

// Add records one occurrence of sym in the design histogram.
func (e *EntropyEncoder) Add(sym byte) {
	e.freqs[sym]++
	e.built = false
}

// Reset clears the histogram and any built table, for reuse across tiles.
func (e *EntropyEncoder) Reset() {
	for i := range e.freqs {
		e.freqs[i] = 0
	}
	e.lengths = nil
	e.codes = nil
	e.built = false
}

// Finalize builds the Huffman table from the accumulated histogram. Per
// spec.md §7 (Bug), a nonempty alphabet that fails to produce a valid
// table indicates a programmer error and is reported rather than
// silently patched over.
func (e *EntropyEncoder) Finalize() error {
	lengths, err := BuildLengths(e.freqs[:])
	if err != nil {
		return fmt.Errorf("huffman: bug: %w", err)
	}
	e.lengths = lengths
	e.codes = BuildCanonicalCodes(lengths)
	e.built = true
	return nil
}

// nonZeroSymbols returns symbols with nonzero frequency, sorted ascending.
func (e *EntropyEncoder) nonZeroSymbols() []int {
	var out []int
	for i, f := range e.freqs {
		if f > 0 {
			out = append(out, i)
		}
	}
	return out
}

// WriteTables emits a compact description of the table: a 9-bit count of
// present symbols, then for each (ascending) symbol an 8-bit symbol value
// and a 5-bit code length (MaxCodeLength fits in 5 bits). Returns the
// number of bits written.
func (e *EntropyEncoder) WriteTables(w *bitio.Writer) (int, error) {
	if !e.built {
		if err := e.Finalize(); err != nil {
			return 0, err
		}
	}
	syms := e.nonZeroSymbols()
	start := w.BitLen()
	w.WriteBits(uint32(len(syms)), 9)
	for _, s := range syms {
		w.WriteBits(uint32(s), 8)
		w.WriteBits(uint32(e.lengths[s]), 5)
	}
	return w.BitLen() - start, nil
}

// Write emits sym under the finalized table and returns the number of
// bits written.
func (e *EntropyEncoder) Write(sym byte, w *bitio.Writer) (int, error) {
	if !e.built {
		return 0, fmt.Errorf("huffman: bug: Write called before Finalize")
	}
	c := e.codes[sym]
	if c.Len == 0 {
		return 0, fmt.Errorf("huffman: bug: symbol %d has no code", sym)
	}
	w.WriteBits(c.Bits, c.Len)
	return int(c.Len), nil
}

// Simulate returns the bit length Write would produce for sym, without
// emitting anything. spec.md §8 requires Simulate(sym) == len(Write(sym)).
func (e *EntropyEncoder) Simulate(sym byte) (int, error) {
	if !e.built {
		return 0, fmt.Errorf("huffman: bug: Simulate called before Finalize")
	}
	c := e.codes[sym]
	if c.Len == 0 {
		return 0, fmt.Errorf("huffman: bug: symbol %d has no code", sym)
	}
	return int(c.Len), nil
}
