// Package colorfilter implements the CF set of spec.md §4.1: a small set
// of invertible, lossless RGB<->YUV transforms operating on bytes under
// modular (mod-256) arithmetic. Every transform here is built from the
// same "chained correction" shape as the classic reversible YCoCg-R
// (spec.md's own named exemplar): each new channel is a mod-256
// difference from a value already fixed by earlier channels, so encode
// and decode invert exactly regardless of any shift/rounding inside the
// correction term. That structural guarantee is what makes the CF_COUNT
// members below provably bijective over all 2^24 RGB triples rather than
// merely "true so far in testing".
//
// Grounded on svanichkin-babe/utils.go's RgbToYCoCg (the base YCoCg-R
// transform this package generalizes) and
// jpfielding-dicos.go/pkg/compress/jpeg2k/rct.go for the JPEG2000-style
// naming of the analogous "YUVr" member.
package colorfilter

// Count is the number of CF entries. Six permutations of which channel
// seeds the chain, which subtracts first, and which subtracts second
// give six distinct, independently named, all provably invertible
// transforms.
const Count = 6

// CF is one color filter: Forward maps RGB to YUV bytes, Inverse is its
// exact left inverse.
type CF struct {
	Name    string
	Forward func(r, g, b byte) (y, u, v byte)
	Inverse func(y, u, v byte) (r, g, b byte)
}

// chain builds the reversible chain transform seeded by channel "seed",
// subtracting "first" from it, then subtracting "second" from the
// resulting midpoint. It is a bijection on (seed,first,second) for any
// assignment of the three RGB channels to those three roles, because
// every correction term used by the forward direction depends only on
// values the inverse direction has already recovered by the time it
// needs them.
func chain(seed, first, second byte) (c0, c1, c2 byte) {
	c1 = first - seed
	mid := seed + (c1 >> 1)
	c2 = second - mid
	c0 = mid + (c2 >> 1)
	return c0, c1, c2
}

func unchain(c0, c1, c2 byte) (seed, first, second byte) {
	mid := c0 - (c2 >> 1)
	second = c2 + mid
	seed = mid - (c1 >> 1)
	first = c1 + seed
	return seed, first, second
}

// Filters is the fixed, ordered CF table. Index is the CF's on-wire ID.
var Filters = [Count]CF{
	{ // 0: YCoCg-R, spec.md's own named exemplar (seed=G, first=R, second=B).
		Name: "YCoCg-R",
		Forward: func(r, g, b byte) (y, u, v byte) {
			return chain(g, r, b)
		},
		Inverse: func(y, u, v byte) (r, g, b byte) {
			g, r, b = unchain(y, u, v)
			return r, g, b
		},
	},
	{ // 1: YUVr, JPEG2000-flavored ordering (seed=G, first=B, second=R).
		Name: "YUVr",
		Forward: func(r, g, b byte) (y, u, v byte) {
			return chain(g, b, r)
		},
		Inverse: func(y, u, v byte) (r, g, b byte) {
			g, b, r = unchain(y, u, v)
			return r, g, b
		},
	},
	{ // 2: BCIF-R, red-seeded chain.
		Name: "BCIF-R",
		Forward: func(r, g, b byte) (y, u, v byte) {
			return chain(r, g, b)
		},
		Inverse: func(y, u, v byte) (r, g, b byte) {
			r, g, b = unchain(y, u, v)
			return r, g, b
		},
	},
	{ // 3: BCIF-R2, red-seeded chain, channels swapped.
		Name: "BCIF-R2",
		Forward: func(r, g, b byte) (y, u, v byte) {
			return chain(r, b, g)
		},
		Inverse: func(y, u, v byte) (r, g, b byte) {
			r, b, g = unchain(y, u, v)
			return r, g, b
		},
	},
	{ // 4: BCIF-B, blue-seeded chain.
		Name: "BCIF-B",
		Forward: func(r, g, b byte) (y, u, v byte) {
			return chain(b, g, r)
		},
		Inverse: func(y, u, v byte) (r, g, b byte) {
			b, g, r = unchain(y, u, v)
			return r, g, b
		},
	},
	{ // 5: BCIF-B2, blue-seeded chain, channels swapped.
		Name: "BCIF-B2",
		Forward: func(r, g, b byte) (y, u, v byte) {
			return chain(b, r, g)
		},
		Inverse: func(y, u, v byte) (r, g, b byte) {
			b, r, g = unchain(y, u, v)
			return r, g, b
		},
	},
}
