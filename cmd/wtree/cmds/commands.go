package cmds

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/watchtree/watchtree/cmd/wtree/cmds/helphelpers"
	"github.com/watchtree/watchtree/pkg/backend/replay"
	"github.com/watchtree/watchtree/pkg/config"
	"github.com/watchtree/watchtree/pkg/logflags"
	"github.com/watchtree/watchtree/pkg/terminal"
	"github.com/watchtree/watchtree/pkg/version"
	"github.com/watchtree/watchtree/service"
	"github.com/watchtree/watchtree/service/dap"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// addr is the address the DAP server listens on.
	addr string
	// initFile is the path to initialization file.
	initFile string
	// rootPrefix overrides the root-prefix configuration key.
	rootPrefix string
	// delimiter overrides the name-delimiter configuration key.
	delimiter string

	// dumpVerbose adds the name map to the output of 'dump'.
	dumpVerbose bool
	// dumpExpand lists the inames 'dump' expands before printing.
	dumpExpand []string
	// verboseVersion adds the build dependencies to the output of 'version'.
	verboseVersion bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const wtreeCommandLongDesc = `Wtree inspects the variables of a suspended thread.

The debugger engine lists the variables of a stack frame as a flat table,
where the children of a variable follow it once it is expanded. Wtree keeps
a stable name for every variable ("local.this.d") across expansions,
decodes string types whose contents the engine can not show and exposes the
tree to a terminal or to any editor speaking the Debug Adaptor Protocol.

Snapshots of suspended threads are stored as YAML, see 'wtree help replay'.`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main wtree root command.
	rootCommand = &cobra.Command{
		Use:          "wtree",
		Short:        "Wtree is a symbol tree inspector for suspended threads.",
		Long:         wtreeCommandLongDesc,
		SilenceUsage: true,
	}

	rootCommand.PersistentFlags().StringVarP(&addr, "listen", "l", "127.0.0.1:0", "DAP server listen address.")
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'wtree help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'wtree help log').")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.PersistentFlags().StringVar(&rootPrefix, "prefix", "", "Iname of the root of the locals tree (overrides root-prefix).")
	rootCommand.PersistentFlags().StringVar(&delimiter, "delimiter", "", "Separator of iname segments (overrides name-delimiter).")

	// 'replay' subcommand.
	replayCommand := &cobra.Command{
		Use:   "replay <snapshot>",
		Short: "Inspects a snapshot in the terminal.",
		Long: `Inspects a snapshot in the terminal.

A snapshot is a YAML file describing the variables of one stack frame as a
tree, the ones the engine already expanded being marked as such, and the
regions of target memory the string dumpers read:

	thread: 4412
	frame:
	  function: MainWindow::on_load_clicked
	symbols:
	- name: title
	  type: class QString
	  offset: 0x12fe00
	  flags: [local]
	  children:
	  - ...
	memory:
	- address: 0x003a2c92
	  utf16: Hallo
`,
		Args: cobra.ExactArgs(1),
		RunE: replayCmd,
	}
	rootCommand.AddCommand(replayCommand)

	// 'dump' subcommand.
	dumpCommand := &cobra.Command{
		Use:   "dump <snapshot>",
		Short: "Prints the symbol table of a snapshot.",
		Long: `Prints the symbol table of a snapshot.

The variables named with --expand are expanded, in order, before printing.`,
		Args: cobra.ExactArgs(1),
		RunE: dumpCmd,
	}
	dumpCommand.Flags().BoolVarP(&dumpVerbose, "verbose", "v", false, "Print the map from inames to table positions.")
	dumpCommand.Flags().StringSliceVar(&dumpExpand, "expand", nil, "Inames to expand before printing.")
	rootCommand.AddCommand(dumpCommand)

	// 'dap' subcommand.
	dapCommand := &cobra.Command{
		Use:   "dap [snapshot]",
		Short: "Starts a TCP server communicating via Debug Adaptor Protocol (DAP).",
		Long: `Starts a TCP server communicating via Debug Adaptor Protocol (DAP).

The snapshot to inspect is named by the 'snapshot' attribute of the launch
request and defaults to the one given on the command line.
The server does not accept multiple client connections.`,
		Args: cobra.MaximumNArgs(1),
		RunE: dapCmd,
	}
	rootCommand.AddCommand(dapCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Wtree\n%s\n", version.WatchtreeVersion)
			if verboseVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&verboseVersion, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	symgroup	Log expansions of the symbol table
	dumpers		Log the internal string dumpers
	replay		Log queries to the snapshot engine
	memory		Log the target memory cache
	dap		Log all DAP messages
	terminal	Log terminal commands

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
This option will also redirect the "server listening at" message in dap
mode.

`,
	})

	defaultUsageFunc := rootCommand.UsageFunc()
	rootCommand.SetUsageFunc(func(cmd *cobra.Command) error {
		helphelpers.Prepare(cmd)
		return defaultUsageFunc(cmd)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// targetConfig returns the configuration with the command line overrides
// applied.
func targetConfig() *config.Config {
	c := *conf
	if rootPrefix != "" {
		c.RootPrefix = rootPrefix
	}
	if delimiter != "" {
		c.NameDelimiter = delimiter
	}
	return &c
}

func replayCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()

	target, err := replay.Open(args[0], targetConfig())
	if err != nil {
		return err
	}
	term := terminal.New(target, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		return err
	}
	if status != 0 {
		return fmt.Errorf("exit status %d", status)
	}
	return nil
}

func dumpCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()

	target, err := replay.Open(args[0], targetConfig())
	if err != nil {
		return err
	}
	defer target.Close()

	ctx := target.Context()
	for _, iname := range dumpExpand {
		if err := ctx.ExpandSymbol(iname); err != nil {
			return err
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), ctx.Dump(dumpVerbose))
	return nil
}

func dapCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()

	if initFile != "" {
		fmt.Fprint(os.Stderr, "Warning: init file ignored with dap\n")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("couldn't start listener: %w", err)
	}
	cfg := &service.Config{
		Listener: listener,
		Conf:     targetConfig(),
	}
	if len(args) > 0 {
		if _, err := os.Stat(args[0]); err != nil {
			listener.Close()
			return err
		}
		cfg.Snapshot = args[0]
	}
	disconnectChan := make(chan struct{})
	cfg.DisconnectChan = disconnectChan
	server := dap.NewServer(cfg)
	defer server.Stop()

	server.Run()
	if !waitForDisconnectSignal(disconnectChan) {
		return errors.New("interrupted")
	}
	return nil
}

// waitForDisconnectSignal blocks until the client disconnects or the user
// interrupts wtree, in which case it returns false.
func waitForDisconnectSignal(disconnectChan chan struct{}) bool {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	select {
	case <-ch:
		return false
	case <-disconnectChan:
		return true
	}
}
