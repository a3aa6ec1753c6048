// Package ofx reads OFX/QFX statement files into account statements.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// amountPrecision is the number of decimal places kept when converting OFX
// amounts, which are arbitrary precision rationals.
const amountPrecision = 6

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Statement is one account's section of an OFX file.
type Statement struct {
	AsOf          time.Time
	LedgerBalance decimal.Decimal
	AccountNumber string
	Currency      string
	AccountType   model.AccountType
	Transactions  []model.Transaction
}

// ExternalID is the key imported accounts are matched on.
func (s *Statement) ExternalID() string {
	return "ofx:" + s.AccountNumber
}

// DisplayName is the name given to accounts created from this statement.
func (s *Statement) DisplayName() string {
	number := s.AccountNumber
	if len(number) > 4 {
		number = number[len(number)-4:]
	}
	label, ok := accountTypeLabels[s.AccountType]
	if !ok {
		label = "Account"
	}
	return fmt.Sprintf("%s ****%s", label, number)
}

var accountTypeLabels = map[model.AccountType]string{
	model.AccountTypeChecking:   "Checking",
	model.AccountTypeSavings:    "Savings",
	model.AccountTypeCreditCard: "Credit Card",
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With("component", "ofx")}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Banks emit mixed-case SEVERITY values; the format requires upper case.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style files sometimes drop the closing bracket of a bare tag line.
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file into one Statement per account it holds.
// Transaction AccountIDs are left empty; the importer fills them once the
// account is known.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Statement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []Statement

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			statements = append(statements, p.bankStatement(stmt))
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			statements = append(statements, p.creditCardStatement(stmt))
		}
	}

	if len(statements) == 0 {
		return nil, fmt.Errorf("OFX file contains no bank or credit card statements")
	}

	total := 0
	for i := range statements {
		total += len(statements[i].Transactions)
	}
	p.logger.Info("Parsed OFX file",
		"statements", len(statements),
		"total_transactions", total)

	return statements, nil
}

func (p *Parser) bankStatement(stmt *ofxgo.StatementResponse) Statement {
	s := Statement{
		AccountNumber: string(stmt.BankAcctFrom.AcctID),
		AccountType:   bankAccountType(stmt.BankAcctFrom.AcctType.String()),
		Currency:      currencyCode(stmt.CurDef),
		LedgerBalance: toDecimal(stmt.BalAmt),
		AsOf:          stmt.DtAsOf.Time,
	}
	if stmt.BankTranList != nil {
		s.Transactions = p.convertTransactions(stmt.BankTranList.Transactions)
	}
	return s
}

func (p *Parser) creditCardStatement(stmt *ofxgo.CCStatementResponse) Statement {
	s := Statement{
		AccountNumber: string(stmt.CCAcctFrom.AcctID),
		AccountType:   model.AccountTypeCreditCard,
		Currency:      currencyCode(stmt.CurDef),
		LedgerBalance: toDecimal(stmt.BalAmt),
		AsOf:          stmt.DtAsOf.Time,
	}
	if stmt.BankTranList != nil {
		s.Transactions = p.convertTransactions(stmt.BankTranList.Transactions)
	}
	return s
}

func (p *Parser) convertTransactions(in []ofxgo.Transaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(in))
	for i := range in {
		out = append(out, p.convertTransaction(in[i]))
	}
	return out
}

// convertTransaction maps an OFX transaction onto the ledger's sign
// convention: credits are income, debits are expenses, and outgoing XFER
// entries are transfers. Amounts become non-negative.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction) model.Transaction {
	amount := toDecimal(ofxTx.TrnAmt)

	txnType := model.TypeIncome
	if amount.IsNegative() {
		txnType = model.TypeExpense
		if ofxTx.TrnType == ofxgo.TrnTypeXfer {
			txnType = model.TypeTransfer
		}
	}

	return model.Transaction{
		ExternalID:  string(ofxTx.FiTID),
		Date:        model.TruncateToDate(ofxTx.DtPosted.Time),
		Description: p.extractDescription(ofxTx),
		Amount:      amount.Abs(),
		Type:        txnType,
	}
}

// extractDescription tries to get a clean payee description from OFX data.
func (p *Parser) extractDescription(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Drop a leading "MM/DD " posting date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

func bankAccountType(ofxType string) model.AccountType {
	switch strings.ToUpper(ofxType) {
	case "SAVINGS", "MONEYMRKT", "CD":
		return model.AccountTypeSavings
	case "CREDITLINE":
		return model.AccountTypeCreditCard
	default:
		return model.AccountTypeChecking
	}
}

func currencyCode(cur ofxgo.CurrSymbol) string {
	code := strings.ToUpper(strings.TrimSpace(cur.String()))
	if len(code) != 3 || code == "XXX" {
		return "USD"
	}
	return code
}

func toDecimal(a ofxgo.Amount) decimal.Decimal {
	d, err := decimal.NewFromString(a.FloatString(amountPrecision))
	if err != nil {
		return decimal.Zero
	}
	return d
}
