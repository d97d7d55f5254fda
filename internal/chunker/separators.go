package chunker

// DefaultNoise are the watermark and running-header strings stamped on the
// pages of the Tanzanian secondary school textbooks.
var DefaultNoise = []string{
	"FOR ONLINE USE ONLY",
	"DO NOT DUPLICATE",
	"PROPERTY OF THE UNITED REPUBLIC OF TANZANIA GOBVERNMENT",
	"Ministry of Education, Science and Technology",
	"For Online Use Only",
	"Student’s Book Form Two",
	"Geography for Secondary Schools",
}

// structuralSeparators go from coarsest to finest; "" forces a hard split.
var structuralSeparators = []string{"\n\n", "\n", " ", ""}

// Separators returns the splitting priority: noise literals first, then
// paragraph, line, word and character boundaries.
func Separators(noise []string) []string {
	seen := make(map[string]bool, len(noise))
	out := make([]string, 0, len(noise)+len(structuralSeparators))
	for _, n := range noise {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return append(out, structuralSeparators...)
}
