package importer

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// ofxAmountPrecision is the number of fractional digits kept from OFX amounts.
const ofxAmountPrecision = 8

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// descriptionPrefixes are card processor noise stripped from names.
var descriptionPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// OFXParser reads OFX/QFX bank and credit card statements.
type OFXParser struct{}

// NewOFXParser creates a new OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// Parse returns one NewTransaction per statement entry. Amounts keep the
// statement's sign, so debits are negative.
func (p *OFXParser) Parse(r io.Reader) ([]service.NewTransaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OFX file: %v", common.ErrValidation, err)
	}

	var (
		txns               []service.NewTransaction
		bankStmts, ccStmts int
	)

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			txns = append(txns, convertTransactions(stmt.BankTranList.Transactions)...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			txns = append(txns, convertTransactions(stmt.BankTranList.Transactions)...)
		}
	}

	slog.Debug("Parsed OFX file",
		"transactions", len(txns),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return txns, nil
}

// preprocessOFX fixes common formatting issues in exported OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

func convertTransactions(entries []ofxgo.Transaction) []service.NewTransaction {
	txns := make([]service.NewTransaction, 0, len(entries))
	for _, entry := range entries {
		amount, err := decimal.NewFromString(entry.TrnAmt.FloatString(ofxAmountPrecision))
		if err != nil {
			slog.Warn("Skipping OFX transaction with unreadable amount",
				"fitid", string(entry.FiTID),
				"error", err)
			continue
		}

		txn := service.NewTransaction{
			Amount:      amount,
			Description: ofxDescription(entry),
			Source:      model.SourceOFX,
		}
		if !entry.DtPosted.IsZero() {
			txn.Date = model.TruncateDay(entry.DtPosted.Time)
		}
		txns = append(txns, txn)
	}
	return txns
}

// ofxDescription prefers the payee, then the name, then the memo when the
// name carries no information.
func ofxDescription(entry ofxgo.Transaction) string {
	if entry.Payee != nil && entry.Payee.Name != "" {
		return strings.TrimSpace(string(entry.Payee.Name))
	}

	name := strings.TrimSpace(string(entry.Name))
	if entry.Memo != "" && (name == "" || isGenericDescription(name)) {
		name = strings.TrimSpace(string(entry.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range descriptionPrefixes {
		if strings.HasPrefix(upper, prefix) {
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
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
