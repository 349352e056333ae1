package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neomorfeo/delayguard/internal/adapter/sqlite"
	"github.com/neomorfeo/delayguard/internal/domain"
)

// tokenCommand administers the bundled token: funding accounts and granting
// the escrow an allowance so they can buy policies.
func tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Administer the bundled token",
	}
	cmd.AddCommand(tokenMintCommand())
	cmd.AddCommand(tokenApproveCommand())
	cmd.AddCommand(tokenBalanceCommand())
	return cmd
}

func openTokenLedger(cmd *cobra.Command) (*sqlite.LedgerRepository, *sqlite.TokenLedger, domain.Address, error) {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return nil, nil, domain.Address{}, err
	}
	tokenAddr, err := cfg.Token()
	if err != nil {
		return nil, nil, domain.Address{}, err
	}
	escrow, err := cfg.Escrow()
	if err != nil {
		return nil, nil, domain.Address{}, err
	}
	repo, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, domain.Address{}, fmt.Errorf("database: %w", err)
	}
	return repo, sqlite.NewTokenLedger(repo.DB(), tokenAddr), escrow, nil
}

func parseHolderAmount(args []string) (domain.Address, domain.Amount, error) {
	holder, err := domain.ParseAddress(args[0])
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	amount, err := domain.ParseAmount(args[1])
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	return holder, amount, nil
}

func tokenMintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <holder> <amount>",
		Short: "Credit holder with newly minted tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			holder, amount, err := parseHolderAmount(args)
			if err != nil {
				return err
			}
			repo, token, _, err := openTokenLedger(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := token.Mint(cmd.Context(), holder, amount); err != nil {
				return err
			}
			balance, err := token.BalanceOf(cmd.Context(), holder)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s balance %s\n", holder, balance)
			return nil
		},
	}
}

func tokenApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <owner> <amount>",
		Short: "Allow the escrow to collect up to amount from owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, amount, err := parseHolderAmount(args)
			if err != nil {
				return err
			}
			repo, token, escrow, err := openTokenLedger(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := token.Approve(cmd.Context(), owner, escrow, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s allows %s to spend %s\n", owner, escrow, amount)
			return nil
		},
	}
}

func tokenBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <holder>",
		Short: "Print the token balance of holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holder, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			repo, token, _, err := openTokenLedger(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			balance, err := token.BalanceOf(cmd.Context(), holder)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), balance.String())
			return nil
		},
	}
}
