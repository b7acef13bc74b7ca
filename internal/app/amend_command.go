package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/cita-toolkit/citactl/internal/errors"
	"github.com/cita-toolkit/citactl/internal/flagval"
	"github.com/cita-toolkit/citactl/internal/parse"
	"github.com/cita-toolkit/citactl/internal/resolve"
	"github.com/cita-toolkit/citactl/internal/rpc"
)

// newAmendCommand builds the amend family. Every leaf owns its validated
// flags and its processor; the shared transaction flags (chain id, signing
// key, quota) sit on the group command and inherit downward.
func (s *runtimeState) newAmendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amend",
		Short: "Amend on-chain state directly (admin only)",
	}

	chainID := flagval.NewU32()
	private := flagval.NewPrivKey()
	quota := flagval.NewU64()
	cmd.PersistentFlags().Var(chainID, resolve.FlagChainID, "Chain id of the target network (decimal)")
	cmd.PersistentFlags().Var(private, resolve.FlagPrivate, "Admin signing key (hex)")
	cmd.PersistentFlags().Var(quota, resolve.FlagQuota, "Transaction quota limit (hex or decimal)")

	cmd.AddCommand(s.newAmendCodeCommand())
	cmd.AddCommand(s.newAmendABICommand())
	cmd.AddCommand(s.newAmendSetH256Command())
	cmd.AddCommand(s.newAmendGetH256Command())
	cmd.AddCommand(s.newAmendBalanceCommand())

	return cmd
}

func (s *runtimeState) newAmendCodeCommand() *cobra.Command {
	address := flagval.NewAddress()
	var content string
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Replace the code of a deployed contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAmend(cmd, func(ctx context.Context, rctx resolve.Context) (*rpc.Response, error) {
				addr, err := parse.ParseAddress(address.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "address passed validation but failed to parse", err)
				}
				return s.client.AmendCode(ctx, addr, content, txQuota(rctx))
			})
		},
	}
	cmd.Flags().Var(address, "address", "Contract account address")
	cmd.Flags().StringVar(&content, "content", "", "New contract code (hex)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func (s *runtimeState) newAmendABICommand() *cobra.Command {
	address := flagval.NewAddress()
	var content, path string
	cmd := &cobra.Command{
		Use:   "abi",
		Short: "Replace the stored ABI of a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAmend(cmd, func(ctx context.Context, rctx resolve.Context) (*rpc.Response, error) {
				abi := content
				if path != "" {
					buf, err := os.ReadFile(path)
					if err != nil {
						return nil, clierr.Wrap(clierr.CodeIO, "read abi file", err)
					}
					abi = string(buf)
				}
				addr, err := parse.ParseAddress(address.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "address passed validation but failed to parse", err)
				}
				return s.client.AmendABI(ctx, addr, abi, txQuota(rctx))
			})
		},
	}
	cmd.Flags().Var(address, "address", "Contract account address")
	cmd.Flags().StringVar(&content, "content", "", "New ABI JSON text")
	cmd.Flags().StringVar(&path, "path", "", "Read the ABI JSON from a file instead")
	_ = cmd.MarkFlagRequired("address")
	cmd.MarkFlagsOneRequired("content", "path")
	cmd.MarkFlagsMutuallyExclusive("content", "path")
	return cmd
}

func (s *runtimeState) newAmendSetH256Command() *cobra.Command {
	address := flagval.NewAddress()
	kv := &flagval.H256List{}
	cmd := &cobra.Command{
		Use:   "set-h256",
		Short: "Write key/value pairs into an account's 256-bit storage",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			n := len(kv.Values())
			if n == 0 || n%2 != 0 {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("--kv expects key/value pairs, got %d values", n))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAmend(cmd, func(ctx context.Context, rctx resolve.Context) (*rpc.Response, error) {
				addr, err := parse.ParseAddress(address.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "address passed validation but failed to parse", err)
				}
				var b strings.Builder
				for _, item := range kv.Values() {
					b.WriteString(parse.Remove0x(item))
				}
				return s.client.AmendSetH256KV(ctx, addr, b.String(), txQuota(rctx))
			})
		},
	}
	cmd.Flags().Var(address, "address", "Target account address")
	cmd.Flags().Var(kv, "kv", "Key and value H256 pairs, in order (repeatable)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("kv")
	return cmd
}

func (s *runtimeState) newAmendGetH256Command() *cobra.Command {
	address := flagval.NewAddress()
	key := flagval.NewH256()
	height := flagval.NewHeight()
	cmd := &cobra.Command{
		Use:   "get-h256",
		Short: "Read one 256-bit storage slot of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAmend(cmd, func(ctx context.Context, rctx resolve.Context) (*rpc.Response, error) {
				addr, err := parse.ParseAddress(address.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "address passed validation but failed to parse", err)
				}
				k, err := parse.ParseH256(key.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "key passed validation but failed to parse", err)
				}
				h, err := parse.ParseHeight(height.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "height passed validation but failed to parse", err)
				}
				return s.client.AmendGetH256KV(ctx, addr, k, h)
			})
		},
	}
	cmd.Flags().Var(address, "address", "Target account address")
	cmd.Flags().Var(key, "key", "Storage key (H256)")
	cmd.Flags().Var(height, "height", "Block height or latest|earliest tag")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func (s *runtimeState) newAmendBalanceCommand() *cobra.Command {
	address := flagval.NewAddress()
	balance := flagval.NewU256()
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Overwrite an account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAmend(cmd, func(ctx context.Context, rctx resolve.Context) (*rpc.Response, error) {
				addr, err := parse.ParseAddress(address.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "address passed validation but failed to parse", err)
				}
				value, err := parse.ParseU256(balance.String())
				if err != nil {
					return nil, clierr.Wrap(clierr.CodeInternal, "balance passed validation but failed to parse", err)
				}
				return s.client.AmendBalance(ctx, addr, value, txQuota(rctx))
			})
		},
	}
	cmd.Flags().Var(address, "address", "Target account address")
	cmd.Flags().Var(balance, "balance", "New balance (hex or decimal)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("balance")
	return cmd
}

// runAmend resolves the ambient context, applies it to the client, runs the
// operation under the configured timeout, and prints the response. The
// session caches the response only after the call succeeds.
func (s *runtimeState) runAmend(cmd *cobra.Command, op func(context.Context, resolve.Context) (*rpc.Response, error)) error {
	rctx, err := resolve.Resolve(cmd, s.session)
	if err != nil {
		return err
	}
	s.applyContext(rctx)

	ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
	defer cancel()

	resp, err := op(ctx, rctx)
	if err != nil {
		return err
	}
	return s.finish(resp, rctx)
}

func (s *runtimeState) applyContext(rctx resolve.Context) {
	s.client.SetURL(rctx.URL)
	s.client.SetDebug(rctx.Debug)
	if rctx.ChainIDSet {
		s.client.SetChainID(rctx.ChainID)
	}
	if rctx.PrivateKey != nil {
		s.client.SetPrivateKey(rctx.PrivateKey)
	}
}

func (s *runtimeState) finish(resp *rpc.Response, rctx resolve.Context) error {
	if err := s.printer.Println(resp, rctx.Color); err != nil {
		return clierr.Wrap(clierr.CodeIO, "write response", err)
	}
	if resp.Result != nil {
		s.session.SetLastResponse(resp.Result)
	}
	return nil
}

func txQuota(rctx resolve.Context) uint64 {
	if rctx.QuotaSet {
		return rctx.Quota
	}
	return 0
}
