package asdiv

// PaletteSize is the number of segment colors: one per displayed
// operator rank plus the final slot reserved for the Others bucket.
const PaletteSize = 9

// Palette is a fixed set of segment colors. Displayed operators draw
// from the leading entries, the synthetic Others bucket always renders
// with the last one.
type Palette [PaletteSize]string

// DefaultPalette is the dashboard's donut palette.
var DefaultPalette = Palette{
	"#f7931a", // orange
	"#3b82f6", // blue
	"#10b981", // green
	"#8b5cf6", // violet
	"#ef4444", // red
	"#06b6d4", // cyan
	"#eab308", // yellow
	"#ec4899", // pink
	"#6b7280", // grey, Others only
}

// Rank returns the color for a displayed operator slot, wrapping when
// more slots are configured than the palette has rank colors.
func (p Palette) Rank(slot int) string {
	return p[slot%(PaletteSize-1)]
}

// Others returns the color reserved for the synthetic Others bucket.
func (p Palette) Others() string {
	return p[PaletteSize-1]
}
