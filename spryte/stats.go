package spryte

import "github.com/google/uuid"

// EncodeStats is the plain aggregate spec.md §9 describes as
// "CAT_COLLECT_STATS", gated at runtime by Options.CollectStats rather
// than a compile-time macro. RunID identifies one Encode call across log
// lines, the way the teacher's logging setup stamps a request ID.
type EncodeStats struct {
	RunID string

	Width, Height int
	ActivePixels  int
	MaskedPixels  int

	PaletteUsed  bool
	PaletteSize  int

	SFReplacements int
	ChaosLevels    int

	RGBABits      int
	FilterMapBits int

	TotalBits int
}

func newStats(collect bool) *EncodeStats {
	if !collect {
		return nil
	}
	return &EncodeStats{RunID: uuid.NewString()}
}
