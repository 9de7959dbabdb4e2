package importer

import (
	"strings"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ofxHeader = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
`

const sampleBankOFX = ofxHeader + `<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>POS PURCHASE STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>2500.00
<FITID>2024012001
<NAME>CREDIT
<MEMO>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = ofxHeader + `<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestOFXParserBankStatement(t *testing.T) {
	txns, err := NewOFXParser().Parse(strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	coffee := txns[0]
	assert.True(t, decimal.RequireFromString("-25.50").Equal(coffee.Amount))
	assert.Equal(t, "STARBUCKS STORE #1234", coffee.Description)
	assert.Equal(t, "2024-01-15", coffee.Date.Format(model.DateLayout))
	assert.Equal(t, model.SourceOFX, coffee.Source)

	payroll := txns[1]
	assert.True(t, decimal.RequireFromString("2500").Equal(payroll.Amount))
	assert.Equal(t, "ACME PAYROLL", payroll.Description)
}

func TestOFXParserCreditCardStatement(t *testing.T) {
	txns, err := NewOFXParser().Parse(strings.NewReader("\n\n" + sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", txns[0].Description)
	assert.Equal(t, "-45.99", txns[0].Amount.String())
}

func TestOFXParserRejectsGarbage(t *testing.T) {
	_, err := NewOFXParser().Parse(strings.NewReader("not an ofx file"))
	assert.Error(t, err)
}

func TestOFXDescription(t *testing.T) {
	tests := []struct {
		name  string
		entry ofxgo.Transaction
		want  string
	}{
		{name: "remove POS prefix", entry: ofxgo.Transaction{Name: "POS PURCHASE STARBUCKS"}, want: "STARBUCKS"},
		{name: "remove DEBIT CARD prefix", entry: ofxgo.Transaction{Name: "DEBIT CARD PURCHASE WHOLE FOODS"}, want: "WHOLE FOODS"},
		{name: "keep clean name", entry: ofxgo.Transaction{Name: "NETFLIX.COM"}, want: "NETFLIX.COM"},
		{name: "trim whitespace", entry: ofxgo.Transaction{Name: "  AMAZON.COM  "}, want: "AMAZON.COM"},
		{name: "drop posting date", entry: ofxgo.Transaction{Name: "01/15 SHELL OIL"}, want: "SHELL OIL"},
		{name: "memo replaces generic name", entry: ofxgo.Transaction{Name: "PAYMENT", Memo: "CITY WATER"}, want: "CITY WATER"},
		{name: "payee wins", entry: ofxgo.Transaction{Name: "SQ *CAFE", Payee: &ofxgo.Payee{Name: "Corner Cafe"}}, want: "Corner Cafe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ofxDescription(tt.entry))
		})
	}
}
