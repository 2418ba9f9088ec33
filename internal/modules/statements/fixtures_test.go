package statements

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const statementHeader = `Statement,Header,Field Name,Field Value
Statement,Data,BrokerName,Interactive Brokers LLC
Statement,Data,BrokerAddress,"Two Pickwick Plaza, Greenwich, CT 06830"
Statement,Data,Title,Activity Statement
Statement,Data,Period,"January 1, 2024 - March 31, 2024"
Statement,Data,WhenGenerated,"2024-04-02, 13:45:12 EDT"
Statement,Data,Title,Ignored Second Title
Account Information,Header,Field Name,Field Value
Account Information,Data,Name,Jane Doe
Account Information,Data,Account,U1234567
Account Information,Data,Account Type,Individual
Account Information,Data,Customer Type,Individual
Account Information,Data,Account Capabilities,Margin
Account Information,Data,Base Currency,USD
Account Information,Data,Nickname,ignored
`

const statementNAV = `Net Asset Value,Header,Asset Class,Prior Total,Current Total
Net Asset Value,Data,Cash,100,200
Change in NAV,Header,Field Name,Field Value
Change in NAV,Data,Starting Value,"1,000.00"
Change in NAV,Data,Realized P/L,50
Change in NAV,Data,Change in Unrealized P/L,-20
Change in NAV,Data,Deposits & Withdrawals,0
Change in NAV,Data,Dividends,5
Change in NAV,Data,Withholding Tax,bogus
Change in NAV,Data,Change in Dividend Accruals,1.5
Change in NAV,Data,Interest,2.5
Change in NAV,Data,Other Fees,-1
Change in NAV,Data,Ending Value,"$1,100.00"
Time Weighted Rate of Return,Data,Time Weighted Rate of Return,3.25%
`

const performanceSummary = `Realized & Unrealized Performance Summary,Header,Asset Category,Symbol,Cost Adj.,Realized Total,Unrealized Total,Total,Code
Realized & Unrealized Performance Summary,Data,Stocks,AAPL,0,100,20,120,
Realized & Unrealized Performance Summary,Data,Stocks,MSFT,0,"1,000.50",0,"1,000.50",
Realized & Unrealized Performance Summary,Data,Equity and Index Options,AAPL 19JUL24 200 C,0,-30,10,-20,
Realized & Unrealized Performance Summary,Data,Futures,CLN4,0,15,0,15,
Realized & Unrealized Performance Summary,Data,Forex,EUR.USD,0,1,1,2,
Realized & Unrealized Performance Summary,Data,Total,,0,"1,086.50",31,"1,117.50",
`

const sampleStatement = statementHeader + statementNAV + performanceSummary

func writeStatement(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
