package accounts

import "sort"

// Seed describes one account of the default chart.
type Seed struct {
	Code       string
	Name       string
	Type       AccountType
	Category   string
	ParentCode string
}

// DefaultChart is the property-management chart installed by SeedDefaults.
// Parents precede their children.
var DefaultChart = []Seed{
	{Code: "1000", Name: "Cash on Hand", Type: AccountTypeAsset, Category: CategoryCash},
	{Code: "1001", Name: "Bank Account", Type: AccountTypeAsset, Category: CategoryBank},
	{Code: "1002", Name: "Petty Cash", Type: AccountTypeAsset, Category: CategoryCash},
	{Code: "1003", Name: "Mobile Wallet", Type: AccountTypeAsset, Category: CategoryWallet},
	{Code: "1100", Name: "Accounts Receivable", Type: AccountTypeAsset, Category: CategoryReceivable},
	{Code: "2000", Name: "Accounts Payable", Type: AccountTypeLiability, Category: CategoryPayable},
	{Code: "2100", Name: "Tenant Deposits", Type: AccountTypeLiability, Category: "deposit"},
	{Code: "3000", Name: "Owner's Equity", Type: AccountTypeEquity, Category: "capital"},
	{Code: "3100", Name: "Retained Earnings", Type: AccountTypeEquity, Category: "retained"},
	{Code: "4000", Name: "Rental Income", Type: AccountTypeIncome, Category: "rental"},
	{Code: "4001", Name: "Student Accommodation Rent", Type: AccountTypeIncome, Category: "rental", ParentCode: "4000"},
	{Code: "4002", Name: "Short-Stay Rent", Type: AccountTypeIncome, Category: "rental", ParentCode: "4000"},
	{Code: "4100", Name: "Other Income", Type: AccountTypeIncome, Category: "other"},
	{Code: "4200", Name: "Admin Fees", Type: AccountTypeIncome, Category: "fees"},
	{Code: "5000", Name: "Operating Expenses", Type: AccountTypeExpense, Category: "operating"},
	{Code: "5001", Name: "Maintenance Expense", Type: AccountTypeExpense, Category: "maintenance", ParentCode: "5000"},
	{Code: "5002", Name: "Utilities Expense", Type: AccountTypeExpense, Category: "utilities", ParentCode: "5000"},
	{Code: "5003", Name: "Staff Salaries", Type: AccountTypeExpense, Category: "salaries", ParentCode: "5000"},
	{Code: "5004", Name: "Cleaning Expense", Type: AccountTypeExpense, Category: "cleaning", ParentCode: "5000"},
	{Code: "5005", Name: "Security Expense", Type: AccountTypeExpense, Category: "security", ParentCode: "5000"},
	{Code: "5099", Name: "Miscellaneous Expense", Type: AccountTypeExpense, Category: "miscellaneous"},
}

// DescendantCodes returns code followed by the codes of every account below it,
// sorted. Unknown codes yield nil.
func DescendantCodes(all []Account, code string) []string {
	byID := make(map[int64][]Account, len(all))
	var root *Account
	for i := range all {
		acc := all[i]
		if acc.Code == code {
			root = &all[i]
		}
		if acc.ParentID != nil {
			byID[*acc.ParentID] = append(byID[*acc.ParentID], acc)
		}
	}
	if root == nil {
		return nil
	}
	out := []string{root.Code}
	seen := map[int64]struct{}{root.ID: {}}
	queue := []int64{root.ID}
	var children []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range byID[id] {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			children = append(children, child.Code)
			queue = append(queue, child.ID)
		}
	}
	sort.Strings(children)
	return append(out, children...)
}

// wouldCycle reports whether attaching child under parentID creates a loop.
func wouldCycle(all []Account, childID, parentID int64) bool {
	parents := make(map[int64]*int64, len(all))
	for _, acc := range all {
		parents[acc.ID] = acc.ParentID
	}
	current := &parentID
	for steps := 0; current != nil && steps <= len(all); steps++ {
		if *current == childID {
			return true
		}
		current = parents[*current]
	}
	return false
}
