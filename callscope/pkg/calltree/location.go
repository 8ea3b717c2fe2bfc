package calltree

import "fmt"

// SourceLocation points into the traced program's source. The zero value
// means the location is unknown, as reported for native or synthesized
// frames.
type SourceLocation struct {
	Path   string `json:"path,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// String renders the location in the usual path:line:column form, or an
// empty string for the zero value.
func (l SourceLocation) String() string {
	if l == (SourceLocation{}) {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
}
