package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cita-toolkit/citactl/internal/config"
	clierr "github.com/cita-toolkit/citactl/internal/errors"
	"github.com/cita-toolkit/citactl/internal/history"
	"github.com/cita-toolkit/citactl/internal/interactive"
	"github.com/cita-toolkit/citactl/internal/parse"
	"github.com/cita-toolkit/citactl/internal/policy"
	"github.com/cita-toolkit/citactl/internal/printer"
	"github.com/cita-toolkit/citactl/internal/resolve"
	"github.com/cita-toolkit/citactl/internal/rpc"
	"github.com/cita-toolkit/citactl/internal/schema"
	"github.com/cita-toolkit/citactl/internal/session"
	"github.com/cita-toolkit/citactl/internal/version"
)

// ledgerClient is the collaborator the processors drive: a stateful session
// object configured through setters, with one named operation per leaf.
type ledgerClient interface {
	SetURL(url string)
	SetChainID(id uint32)
	SetPrivateKey(key *parse.PrivateKey)
	SetDebug(debug bool)

	AmendCode(ctx context.Context, addr common.Address, content string, quota uint64) (*rpc.Response, error)
	AmendABI(ctx context.Context, addr common.Address, content string, quota uint64) (*rpc.Response, error)
	AmendSetH256KV(ctx context.Context, addr common.Address, kvHex string, quota uint64) (*rpc.Response, error)
	AmendGetH256KV(ctx context.Context, addr common.Address, key common.Hash, height string) (*rpc.Response, error)
	AmendBalance(ctx context.Context, addr common.Address, balance *uint256.Int, quota uint64) (*rpc.Response, error)
}

type Runner struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	newClient  func(settings config.Settings) ledgerClient
	isTerminal func() bool
}

func NewRunner() *Runner {
	r := NewRunnerWithWriters(os.Stdout, os.Stderr)
	r.stdin = os.Stdin
	r.isTerminal = func() bool { return isatty.IsTerminal(os.Stdout.Fd()) }
	return r
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		newClient: func(settings config.Settings) ledgerClient {
			return rpc.New(settings.Timeout, settings.Retries)
		},
		isTerminal: func() bool { return false },
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	session  *session.Config
	client   ledgerClient
	printer  *printer.Printer
	root     *cobra.Command
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.freshRoot()
	root.SetArgs(args)

	err := normalizeRunError(root.Execute())
	if err == nil {
		return 0
	}
	fmt.Fprintf(r.stderr, "error: %v\n", err)
	return clierr.ExitCode(err)
}

// freshRoot builds a new command tree bound to this state. Flag values live
// inside the tree, so each dispatch (one-shot or interactive line) gets a
// clean parse; session, client, and printer persist on the state.
func (s *runtimeState) freshRoot() *cobra.Command {
	root := s.newRootCommand()
	s.root = root
	if s.runner.stdin != nil {
		root.SetIn(s.runner.stdin)
	}
	root.SetOut(s.runner.stdout)
	root.SetErr(s.runner.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Administrative client for a CITA-style ledger node",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if s.session == nil {
				color := settings.Color && s.runner.isTerminal()
				s.session = session.New(settings.URL, settings.Debug, color, settings.Encryption)
			}
			if s.client == nil {
				s.client = s.runner.newClient(settings)
			}
			if s.printer == nil {
				s.printer = printer.New(s.runner.stdout)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.URL, resolve.FlagURL, "", "JSON-RPC endpoint of the ledger node")
	cmd.PersistentFlags().BoolVar(&s.flags.Debug, resolve.FlagDebug, false, "Dump request and response traffic")
	cmd.PersistentFlags().BoolVar(&s.flags.NoColor, resolve.FlagNoColor, false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&s.flags.Encryption, resolve.FlagEncryption, "", "Encryption scheme for signing keys (secp256k1|ed25519)")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Node request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per node request")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")

	cmd.AddCommand(s.newAmendCommand())
	cmd.AddCommand(s.newCommandsCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newInteractiveCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

// newCommandsCommand lists every leaf command path, one per line, in
// declaration order. Interactive completion and external tooling both
// consume this.
func (s *runtimeState) newCommandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List every leaf command path",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range schema.Flatten(s.root) {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(path, " "))
			}
			return nil
		},
	}
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.Join(args, " ")
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
}

func (s *runtimeState) newInteractiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"repl"},
		Short:   "Start an interactive session against the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := history.Open(s.settings.HistoryPath, s.settings.HistoryLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeIO, "open history store", err)
			}
			defer func() { _ = hist.Close() }()
			sess := interactive.New(s.freshRoot, cmd.InOrStdin(), s.runner.stdout, hist)
			return sess.Run()
		},
	}
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"if any flags in the group",
		"at least one of the flags",
		"none of the others can be",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
