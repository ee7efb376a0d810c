package relay

import (
	"strconv"
	"strings"
)

// Reading is the set of fields the firmware extracts from one wire line.
type Reading struct {
	X int
	Y int
	Z float64
}

// ParseLine applies the firmware's field extraction to one line. It locates the first,
// second and third commas and parses the text before, between and after them as int,
// int and float. Anything after a third comma is ignored. Lines with fewer than three
// fields, or with a field that does not parse, yield ok == false and no fields.
func ParseLine(line string) (r Reading, ok bool) {
	line = strings.TrimRight(line, "\r\n")

	first := strings.IndexByte(line, ',')
	if first < 0 {
		return Reading{}, false
	}
	second := strings.IndexByte(line[first+1:], ',')
	if second < 0 {
		return Reading{}, false
	}
	second += first + 1

	rest := line[second+1:]
	if third := strings.IndexByte(rest, ','); third >= 0 {
		rest = rest[:third]
	}

	x, err := strconv.Atoi(strings.TrimSpace(line[:first]))
	if err != nil {
		return Reading{}, false
	}
	y, err := strconv.Atoi(strings.TrimSpace(line[first+1 : second]))
	if err != nil {
		return Reading{}, false
	}
	z, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return Reading{}, false
	}

	return Reading{X: x, Y: y, Z: z}, true
}
