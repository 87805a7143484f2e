package charm

import (
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/kr/text"
)

const indent = "    "

func displayHelp(w io.Writer, specs []*Spec, showHidden bool) error {
	var parent Command
	var fs *flag.FlagSet
	for _, s := range specs {
		fs = newFlagSet(s)
		cmd, err := s.New(parent, fs)
		if err != nil {
			return err
		}
		parent = cmd
	}
	spec := specs[len(specs)-1]
	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "NAME\n%s%s - %s\n\n", indent, strings.Join(names, " "), spec.Short)
	fmt.Fprintf(&b, "USAGE\n%s%s\n", indent, spec.Usage)
	if opts := options(fs, spec, showHidden); opts != "" {
		fmt.Fprintf(&b, "\nOPTIONS\n%s", text.Indent(opts, indent))
	}
	if cmds := commands(spec, showHidden); cmds != "" {
		fmt.Fprintf(&b, "\nCOMMANDS\n%s", text.Indent(cmds, indent))
	}
	if long := strings.TrimSpace(spec.Long); long != "" {
		fmt.Fprintf(&b, "\nDESCRIPTION\n%s\n", text.Indent(long, indent))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func fields(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func options(fs *flag.FlagSet, spec *Spec, showHidden bool) string {
	hidden := fields(spec.HiddenFlags)
	var b strings.Builder
	fs.VisitAll(func(f *flag.Flag) {
		if !showHidden && slices.Contains(hidden, f.Name) {
			return
		}
		fmt.Fprintf(&b, "-%s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" {
			fmt.Fprintf(&b, " (default %q)", f.DefValue)
		}
		b.WriteByte('\n')
	})
	return b.String()
}

func commands(spec *Spec, showHidden bool) string {
	var b strings.Builder
	for _, child := range spec.children {
		if child.Hidden && !showHidden {
			continue
		}
		fmt.Fprintf(&b, "%s - %s\n", child.Name, child.Short)
	}
	return b.String()
}
