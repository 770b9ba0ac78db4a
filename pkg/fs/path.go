package fs

// NameMax is the maximum length of one path component in bytes.
const NameMax = 14

// Separator delimits path components.
const Separator = '/'

// componentStatus classifies the outcome of one parsing step.
type componentStatus int

const (
	// componentOK means a component was produced and consumed.
	componentOK componentStatus = iota

	// componentEnd means the cursor is exhausted; no component remains.
	componentEnd

	// componentTooLong means the next component exceeds NameMax. The
	// cursor is left pointing at it; parsing cannot continue.
	componentTooLong
)

// nextComponent extracts the next path component from *rest and advances the
// cursor past it (not past the following separator). Leading, trailing, and
// repeated separators collapse to nothing; a string of only separators yields
// componentEnd.
//
// The parser performs no lookups and has no knowledge of directories.
func nextComponent(rest *string) (string, componentStatus) {
	s := *rest

	i := 0
	for i < len(s) && s[i] == Separator {
		i++
	}
	if i == len(s) {
		*rest = s[i:]
		return "", componentEnd
	}

	start := i
	for i < len(s) && s[i] != Separator {
		if i-start == NameMax {
			return "", componentTooLong
		}
		i++
	}

	*rest = s[i:]
	return s[start:i], componentOK
}
