package charm

import (
	"flag"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rootCommand struct {
	verbose bool
}

func (*rootCommand) Run(args []string) error {
	return NoRun(args)
}

type greetCommand struct {
	*rootCommand
	name string
	args []string
}

func (g *greetCommand) Run(args []string) error {
	g.args = args
	return nil
}

func tree(greet **greetCommand) *Spec {
	root := &Spec{
		Name:  "tool",
		Usage: "tool <command>",
		Short: "test tool",
		New: func(Command, *flag.FlagSet) (Command, error) {
			return &rootCommand{}, nil
		},
	}
	root.Add(&Spec{
		Name:        "greet",
		Usage:       "greet [ options ] name",
		Short:       "say hello",
		Long:        "Greet prints a greeting.\nIt takes one argument.",
		HiddenFlags: "secret",
		New: func(parent Command, fs *flag.FlagSet) (Command, error) {
			g := &greetCommand{rootCommand: parent.(*rootCommand)}
			fs.StringVar(&g.name, "name", "world", "who to greet")
			fs.Bool("secret", false, "hidden flag")
			*greet = g
			return g, nil
		},
	})
	root.Add(&Spec{
		Name:   "internal",
		Short:  "hidden command",
		Hidden: true,
		New: func(Command, *flag.FlagSet) (Command, error) {
			return &rootCommand{}, nil
		},
	})
	return root
}

func TestExec(t *testing.T) {
	var g *greetCommand
	root := tree(&g)
	require.NoError(t, root.Exec([]string{"greet", "-name", "bob", "a", "b"}))
	assert.Equal(t, "bob", g.name)
	assert.Equal(t, []string{"a", "b"}, g.args)
	assert.ErrorIs(t, root.Exec([]string{"bogus"}), ErrNoRun)
	assert.Error(t, root.Exec([]string{"greet", "-nope"}))

	var b strings.Builder
	require.NoError(t, root.ExecTo(&b, []string{"greet", "-h"}))
	assert.Contains(t, b.String(), "tool greet - say hello")
	b.Reset()
	require.NoError(t, root.ExecTo(&b, []string{"greet", "-hidden", "-h"}))
	assert.Contains(t, b.String(), "-secret hidden flag")
}

func TestHelp(t *testing.T) {
	var g *greetCommand
	root := tree(&g)
	var b strings.Builder
	require.NoError(t, displayHelp(&b, parseHelp(root, []string{"greet", "-h"}), false))
	expected := `NAME
    tool greet - say hello

USAGE
    greet [ options ] name

OPTIONS
    -name who to greet (default "world")

DESCRIPTION
    Greet prints a greeting.
    It takes one argument.
`
	assert.Equal(t, expected, b.String())

	b.Reset()
	require.NoError(t, displayHelp(&b, parseHelp(root, nil), false))
	assert.Contains(t, b.String(), "COMMANDS\n    greet - say hello\n")
	assert.NotContains(t, b.String(), "internal")
}
