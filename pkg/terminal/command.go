// Package terminal implements functions for responding to user
// input and dispatching to the symbol context.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/watchtree/watchtree/pkg/symgroup"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the wtree terminal.
type Commands struct {
	cmds []command
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"locals"}, group: dataCmds, cmdFn: locals, helpMsg: `Print local variables.

	locals [-v] [<regex>]

If regex is specified only the local variables with a name matching it will be returned. If -v is specified the type and address of each variable are printed.`},
		{aliases: []string{"print", "p"}, group: dataCmds, cmdFn: printVar, helpMsg: `Evaluate a variable.

	print <iname>

The iname can be given relative to the root of the locals tree: "print this.d" prints "local.this.d".`},
		{aliases: []string{"whatis"}, group: dataCmds, cmdFn: whatisCommand, helpMsg: `Prints the type of a variable.

	whatis <iname>`},
		{aliases: []string{"set"}, group: dataCmds, cmdFn: setVar, helpMsg: `Changes the value of a variable.

	set <iname> = <value>

The new value is interpreted by the debugger engine, which prints it back.`},
		{aliases: []string{"examinemem", "x"}, group: dataCmds, cmdFn: examineMemoryCmd, helpMsg: `Examine raw memory at the given address.

Examine memory:

	examinemem [-fmt <format>] [-count|-len <count>] [-size <size>] [-list] <address|iname>

Format represents the data format and the value is one of this list (default hex): bin(binary), oct(octal), dec(decimal), hex(hexadecimal).
Length is the number of bytes (default 1) and must be less than or equal to 1000.
Size is the size of each unit in bytes (default 1).
With -list the units are printed as a comma separated list.

If an iname is given the memory at the address of the variable is examined.

For example:

    x -fmt hex -count 20 -size 1 0xc00008af38
    x -fmt dec -len 4 -size 2 title.d.data`},
		{aliases: []string{"children", "ls"}, group: treeCmds, cmdFn: childrenCmd, helpMsg: `Lists the children of a variable, expanding it.

	children [<iname>]

Without arguments the top level variables are listed. Variables marked with + have children themselves.`},
		{aliases: []string{"expand"}, group: treeCmds, cmdFn: expandCmd, helpMsg: `Expands a variable.

	expand <iname>

The debugger engine lists the children of the variable after it, moving the symbols that follow.`},
		{aliases: []string{"state"}, group: treeCmds, cmdFn: stateCmd, helpMsg: `Prints whether a variable is a leaf, collapsed or expanded.

	state <iname>`},
		{aliases: []string{"dump"}, group: treeCmds, cmdFn: dumpCmd, helpMsg: `Prints the symbol table.

	dump [-v]

With -v the map from inames to symbol positions is printed as well.`},
		{aliases: []string{"clear"}, group: treeCmds, cmdFn: clearCmd, helpMsg: `Drops the symbol table and the name map.

	clear

Use "init" to read the symbols again.`},
		{aliases: []string{"init"}, group: treeCmds, cmdFn: initCmd, helpMsg: `Reads the symbols of the group again.

	init

Symbols already expanded by the engine stay expanded.`},
		{aliases: []string{"reload"}, group: treeCmds, cmdFn: reloadCmd, helpMsg: `Reloads the snapshot.

	reload

All expansions are dropped.`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of wtree commands.

	source <path>`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the debugger.

	exit`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// An empty command does nothing.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	t.log.Debugf("command %q %q", cmdname, args)
	err := c.Find(cmdname)(t, args)
	t.updateCompletions()
	return err
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// splitArgs splits args like a shell would, honoring quotes.
func splitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line '%s'", args)
	}
	return v[0], nil
}

// iname returns the full iname of the variable named by arg, which may
// omit the root prefix.
func (t *Term) iname(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("not enough arguments")
	}
	prefix := t.target.Context().Prefix()
	delim := t.target.Context().Delimiter()
	if arg == prefix || strings.HasPrefix(arg, prefix+delim) {
		return arg, nil
	}
	return prefix + delim + arg, nil
}

// project returns the description of a variable with the string dumpers
// applied.
func (t *Term) project(iname string) (symgroup.WatchData, error) {
	wd, _, err := t.target.Context().ProjectWithDumpers(iname, t.target.Memory())
	return wd, err
}

func (t *Term) applyDumpers(vars []symgroup.WatchData) {
	ctx, mem := t.target.Context(), t.target.Memory()
	for i := range vars {
		ctx.ApplyDumpers(mem, &vars[i])
	}
}

func printVar(t *Term, args string) error {
	iname, err := t.iname(args)
	if err != nil {
		return err
	}
	wd, err := t.project(iname)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, wd.Value)
	return nil
}

func whatisCommand(t *Term, args string) error {
	iname, err := t.iname(args)
	if err != nil {
		return err
	}
	wd, err := t.target.Context().Project(iname)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, wd.Type)
	if t.conf.ShowAddresses {
		fmt.Fprintf(t.stdout, "address: %s\n", wd.Addr)
	}
	return nil
}

func setVar(t *Term, args string) error {
	eq := strings.Index(args, "=")
	if eq < 0 {
		return errors.New("syntax error '=' not found")
	}
	iname, err := t.iname(args[:eq])
	if err != nil {
		return err
	}
	value := strings.TrimSpace(args[eq+1:])
	if value == "" {
		return errors.New("no value specified")
	}
	newValue, err := t.target.Context().AssignValue(iname, value)
	if err != nil {
		return err
	}
	t.target.Flush()
	fmt.Fprintf(t.stdout, "%s = %s\n", iname, newValue)
	return nil
}

func locals(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	verbose := false
	if len(v) > 0 && v[0] == "-v" {
		verbose = true
		v = v[1:]
	}
	filter := ""
	if len(v) > 0 {
		filter = v[0]
	}
	ctx := t.target.Context()
	vars, err := ctx.Children(ctx.Prefix())
	if err != nil {
		return err
	}
	return t.printFilteredVariables("locals", vars, filter, verbose)
}

func (t *Term) printFilteredVariables(varType string, vars []symgroup.WatchData, filter string, verbose bool) error {
	reg, err := regexp.Compile(filter)
	if err != nil {
		return err
	}
	match := false
	for i := range vars {
		if !reg.MatchString(vars[i].Name) {
			continue
		}
		match = true
		t.applyDumpers(vars[i : i+1])
		t.printVariable(t.stdout, vars[i], verbose)
	}
	if !match {
		fmt.Fprintf(t.stdout, "(no %s)\n", varType)
	}
	return nil
}

func (t *Term) printVariable(w interface{ Write([]byte) (int, error) }, wd symgroup.WatchData, verbose bool) {
	name := wd.Name
	if verbose {
		name = fmt.Sprintf("%s %s", wd.Name, wd.Type)
	}
	if verbose || t.conf.ShowAddresses {
		name = fmt.Sprintf("%s (%s)", name, wd.Addr)
	}
	fmt.Fprintf(w, "%s = %s\n", name, wd.Value)
}

func childrenCmd(t *Term, args string) error {
	ctx := t.target.Context()
	iname := ctx.Prefix()
	if args != "" {
		var err error
		if iname, err = t.iname(args); err != nil {
			return err
		}
	}
	vars, err := ctx.Children(iname)
	if err != nil {
		return err
	}
	if len(vars) == 0 {
		fmt.Fprintln(t.stdout, "(no children)")
		return nil
	}
	t.applyDumpers(vars)
	w := tabwriter.NewWriter(t.stdout, 0, 8, 1, ' ', 0)
	for _, wd := range vars {
		marker := " "
		if wd.HasChildren == symgroup.True {
			marker = t.highlight(ansiGreen, "+")
		}
		fmt.Fprintf(w, "%s %s\t%s\t= %s\n", marker, wd.Name, wd.Type, wd.Value)
	}
	return w.Flush()
}

func expandCmd(t *Term, args string) error {
	iname, err := t.iname(args)
	if err != nil {
		return err
	}
	ctx := t.target.Context()
	before := ctx.Len()
	if err := ctx.ExpandSymbol(iname); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s: %d new symbols\n", iname, ctx.Len()-before)
	return nil
}

func stateCmd(t *Term, args string) error {
	iname, err := t.iname(args)
	if err != nil {
		return err
	}
	ctx := t.target.Context()
	if iname != ctx.Prefix() {
		if _, err := ctx.Lookup(iname); err != nil {
			return err
		}
	}
	fmt.Fprintln(t.stdout, ctx.SymbolState(iname))
	return nil
}

func dumpCmd(t *Term, args string) error {
	switch args {
	case "":
		fmt.Fprint(t.stdout, t.target.Context().Dump(false))
	case "-v":
		fmt.Fprint(t.stdout, t.target.Context().Dump(true))
	default:
		return fmt.Errorf("unknown option %q", args)
	}
	return nil
}

func clearCmd(t *Term, args string) error {
	t.target.Context().Clear()
	return nil
}

func initCmd(t *Term, args string) error {
	ctx := t.target.Context()
	if err := ctx.Init(); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%d symbols\n", ctx.Len())
	return nil
}

func reloadCmd(t *Term, args string) error {
	if err := t.target.Reload(); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "reloaded %s\n", t.target.Snapshot().Path())
	return nil
}

// ExitRequestError is returned when the user
// exits wtree.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) sourceCommand(t *Term, args string) error {
	if len(args) == 0 {
		return errors.New("wrong number of arguments: source <filename>")
	}
	return c.executeFile(t, args)
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
