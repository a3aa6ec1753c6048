package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account", "acct"},
		Short:   "Manage ledger accounts",
	}

	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsCreateCmd())
	cmd.AddCommand(accountsShowCmd())

	return cmd
}

func accountsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter := service.AccountFilter{}
			filter.OwnerID, _ = cmd.Flags().GetString("owner")
			if raw, _ := cmd.Flags().GetString("type"); raw != "" {
				accountType, err := model.ParseAccountType(raw)
				if err != nil {
					return common.NewUserError("Invalid --type value", err)
				}
				filter.Type = accountType
			}
			legacyOnly, _ := cmd.Flags().GetBool("legacy")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			accounts, err := store.ListAccounts(ctx, filter)
			if err != nil {
				return err
			}

			if legacyOnly {
				kept := accounts[:0]
				for _, a := range accounts {
					if a.InitialBalance.IsZero() && !a.Balance.IsZero() {
						kept = append(kept, a)
					}
				}
				accounts = kept
			}

			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No accounts found"))
				return nil
			}
			return renderAccounts(cmd.OutOrStdout(), accounts)
		},
	}

	cmd.Flags().String("owner", "", "Only list accounts belonging to this owner")
	cmd.Flags().String("type", "", "Only list accounts of this type")
	cmd.Flags().Bool("legacy", false, "Only list accounts whose opening balance was never recorded")

	return cmd
}

func renderAccounts(w io.Writer, accounts []model.Account) error {
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{
			a.ID,
			truncate(a.Name, 28),
			string(a.Type),
			a.Currency,
			a.InitialBalance.StringFixed(2),
			a.Balance.StringFixed(2),
		})
	}

	t := cli.NewTable([]string{"ID", "Name", "Type", "Currency", "Initial", "Balance"}, rows, 4, 5)

	_, err := fmt.Fprintf(w, "%s\n%d accounts\n", t.Render(), len(accounts))
	return err
}

func accountsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Long: `Create an account with an opening balance. The running balance starts at
the opening balance and moves as transactions are added.`,
		Example: `  books accounts create "Everyday Checking" --type checking --initial-balance 1200`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rawType, _ := cmd.Flags().GetString("type")
			accountType, err := model.ParseAccountType(rawType)
			if err != nil {
				return common.NewUserError("Invalid --type value", err)
			}

			initial := decimal.Zero
			if raw, _ := cmd.Flags().GetString("initial-balance"); raw != "" {
				initial, err = reconcile.ParseInitialBalance(raw)
				if err != nil {
					return common.NewUserError("Invalid --initial-balance value", err)
				}
			}

			owner, _ := cmd.Flags().GetString("owner")
			currency, _ := cmd.Flags().GetString("currency")

			account := &model.Account{
				OwnerID:        strings.TrimSpace(owner),
				Name:           strings.TrimSpace(args[0]),
				Type:           accountType,
				Currency:       strings.ToUpper(strings.TrimSpace(currency)),
				InitialBalance: initial,
				Balance:        initial,
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreateAccount(ctx, account); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created account %s (%s)", account.Name, account.ID)))
			return nil
		},
	}

	cmd.Flags().String("type", string(model.AccountTypeChecking), "Account type (checking, savings, credit_card, cash, investment)")
	cmd.Flags().String("currency", "USD", "ISO currency code")
	cmd.Flags().String("initial-balance", "0", "Opening balance")
	cmd.Flags().String("owner", "", "Owner of the account")

	return cmd
}

func accountsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an account and whether its balances agree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			account, err := store.FindAccount(ctx, args[0])
			if err != nil {
				return err
			}
			txns, err := store.ListTransactions(ctx, account.ID)
			if err != nil {
				return err
			}

			plan := reconcile.PlanAccount(*account, txns)
			cur := account.Currency

			lines := []string{
				fmt.Sprintf("ID:                 %s", account.ID),
				fmt.Sprintf("Type:               %s", account.Type),
			}
			if account.OwnerID != "" {
				lines = append(lines, fmt.Sprintf("Owner:              %s", account.OwnerID))
			}
			if account.ExternalID != "" {
				lines = append(lines, fmt.Sprintf("Institution ID:     %s", account.ExternalID))
			}
			lines = append(lines,
				fmt.Sprintf("Initial balance:    %s", formatMoney(account.InitialBalance, cur)),
				fmt.Sprintf("Transaction sum:    %s (%d transactions)", formatMoney(plan.TransactionSum, cur), plan.TransactionCount),
				fmt.Sprintf("Calculated balance: %s", formatMoney(account.InitialBalance.Add(plan.TransactionSum), cur)),
				fmt.Sprintf("Balance:            %s", formatMoney(account.Balance, cur)),
			)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderBox(account.Name, strings.Join(lines, "\n")))

			switch plan.Status {
			case reconcile.StatusDerived:
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf(
					"Opening balance was never recorded; reconciling would set it to %s",
					formatMoney(plan.After, cur))))
			default:
				if drift := account.Balance.Sub(account.InitialBalance.Add(plan.TransactionSum)); !drift.IsZero() {
					fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Balance differs from the calculated balance by %s", formatMoney(drift, cur))))
				} else {
					fmt.Fprintln(out, cli.FormatSuccess("Balances agree"))
				}
			}
			return nil
		},
	}
}
