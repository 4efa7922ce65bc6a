package colorfilter

import "testing"

// TestRoundTripAllTriples verifies spec.md §8's invariant that
// YUV2RGB[CF](RGB2YUV[CF](rgb)) == rgb bitwise for every one of the
// 2^24 RGB triples, for every CF.
func TestRoundTripAllTriples(t *testing.T) {
	for _, cf := range Filters {
		cf := cf
		t.Run(cf.Name, func(t *testing.T) {
			for r := 0; r < 256; r++ {
				for g := 0; g < 256; g++ {
					for b := 0; b < 256; b++ {
						y, u, v := cf.Forward(byte(r), byte(g), byte(b))
						r2, g2, b2 := cf.Inverse(y, u, v)
						if r2 != byte(r) || g2 != byte(g) || b2 != byte(b) {
							t.Fatalf("%s: round trip failed for (%d,%d,%d): got (%d,%d,%d)",
								cf.Name, r, g, b, r2, g2, b2)
						}
					}
				}
			}
		})
	}
}

func TestFiltersHaveUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, cf := range Filters {
		if seen[cf.Name] {
			t.Fatalf("duplicate CF name %q", cf.Name)
		}
		seen[cf.Name] = true
	}
}

func TestIdentityGrayscaleIsStable(t *testing.T) {
	// r==g==b should always produce u==v==0 for every chain member,
	// since both differences in the chain collapse to zero.
	for _, cf := range Filters {
		for v := 0; v < 256; v += 17 {
			y, u, w := cf.Forward(byte(v), byte(v), byte(v))
			if u != 0 || w != 0 {
				t.Fatalf("%s: expected u=w=0 for gray %d, got y=%d u=%d v=%d", cf.Name, v, y, u, w)
			}
		}
	}
}
