package chart

// Category10 is the ten-colour categorical palette used for pie slices
var Category10 = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// SteelBlue fills bars and strokes the line
const SteelBlue = "#4682b4"

// paletteFor assigns colours by position in keys so a manufacturer keeps its
// colour whatever the selection
func paletteFor(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		out[k] = Category10[i%len(Category10)]
	}
	return out
}
