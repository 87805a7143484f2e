package sfmt

import (
	"fmt"
	"strings"
)

type formatter struct {
	strings.Builder
	indent int
	tab    int
	bol    bool
}

func (f *formatter) write(s string, args ...any) {
	if f.bol && f.indent > 0 {
		f.WriteString(strings.Repeat(" ", f.indent))
	}
	f.bol = false
	if len(args) == 0 {
		f.WriteString(s)
		return
	}
	fmt.Fprintf(&f.Builder, s, args...)
}

func (f *formatter) ret() {
	f.WriteString("\n")
	f.bol = true
}

func (f *formatter) open() {
	f.indent += f.tab
}

func (f *formatter) close() {
	f.indent -= f.tab
}
