package records

import (
	"strconv"
	"strings"
)

// DefaultPrecision is the number of decimals FormatEmbedding uses in tables.
const DefaultPrecision = 2

// FormatEmbedding renders vec as comma separated fixed-point numbers.
// A negative precision prints the shortest exact representation.
func FormatEmbedding(vec []float32, precision int) string {
	var b strings.Builder
	for i, v := range vec {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', precision, 32))
	}
	return b.String()
}
