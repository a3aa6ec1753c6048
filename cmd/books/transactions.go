package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn", "txns"},
		Short:   "Record and list transactions",
	}

	cmd.AddCommand(transactionsAddCmd())
	cmd.AddCommand(transactionsListCmd())

	return cmd
}

func transactionsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <account-id> <amount>",
		Short: "Record a transaction and move the account balance",
		Long: `Record a transaction. The amount is always positive; the type decides the
direction. INCOME and REIMBURSEMENT add to the balance, EXPENSE and TRANSFER
subtract from it, and ACCOUNT_TRANSFER_IN leaves it unchanged.`,
		Example: `  books transactions add 01J9ZK3V7Q8M4T6W2X5Y0A1B2C 42.50 --type expense --description "Groceries"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := decimal.NewFromString(strings.TrimSpace(args[1]))
			if err != nil {
				return common.NewUserError("Amount must be a decimal number", err)
			}
			if amount.IsNegative() {
				return common.NewUserError("Amount must not be negative; use --type for direction", common.ErrInvalidArgument)
			}

			rawType, _ := cmd.Flags().GetString("type")
			txnType, err := model.ParseTransactionType(rawType)
			if err != nil {
				return common.NewUserError("Invalid --type value", err)
			}

			date := time.Now().UTC()
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				date, err = time.Parse(model.DateLayout, raw)
				if err != nil {
					return common.NewUserError("--date must be YYYY-MM-DD", err)
				}
			}
			description, _ := cmd.Flags().GetString("description")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn := model.Transaction{
				AccountID:   args[0],
				Date:        model.TruncateToDate(date),
				Amount:      amount,
				Type:        txnType,
				Description: strings.TrimSpace(description),
			}
			if err := store.AddTransactions(ctx, []model.Transaction{txn}); err != nil {
				return err
			}

			account, err := store.FindAccount(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Recorded %s %s on %s; balance is now %s",
				txnType, amount.StringFixed(2), account.Name, formatMoney(account.Balance, account.Currency))))
			return nil
		},
	}

	cmd.Flags().String("type", string(model.TypeExpense), "Transaction type (income, expense, transfer, reimbursement, account_transfer_in)")
	cmd.Flags().String("date", "", "Transaction date, YYYY-MM-DD (default: today)")
	cmd.Flags().String("description", "", "Description")

	return cmd
}

func transactionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <account-id>",
		Short: "List an account's transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var filter service.TransactionFilter
			for _, f := range []struct {
				dst  **time.Time
				name string
			}{{&filter.StartDate, "from"}, {&filter.EndDate, "to"}} {
				raw, _ := cmd.Flags().GetString(f.name)
				if raw == "" {
					continue
				}
				date, err := time.Parse(model.DateLayout, raw)
				if err != nil {
					return common.NewUserError(fmt.Sprintf("--%s must be YYYY-MM-DD", f.name), err)
				}
				*f.dst = &date
			}
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			account, err := store.FindAccount(ctx, args[0])
			if err != nil {
				return err
			}
			txns, err := store.ListTransactionsFiltered(ctx, account.ID, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(txns) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No transactions found"))
				return nil
			}

			rows := make([][]string, 0, len(txns))
			for i := range txns {
				t := &txns[i]
				rows = append(rows, []string{
					t.Date.Format(model.DateLayout),
					string(t.Type),
					t.SignedAmount().StringFixed(2),
					truncate(t.Description, 40),
				})
			}

			tbl := cli.NewTable([]string{"Date", "Type", "Amount", "Description"}, rows, 2)

			fmt.Fprintf(out, "%s\n%s: %d transactions\n", tbl.Render(), account.Name, len(txns))
			return nil
		},
	}

	cmd.Flags().String("from", "", "Earliest date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "Latest date, YYYY-MM-DD")
	cmd.Flags().Int("limit", 0, "Maximum number of transactions (0 = all)")

	return cmd
}
