package resolver

// paymentMethodPatterns maps a normalised payment method to account name
// substrings tried in order against active asset accounts.
var paymentMethodPatterns = map[string][]string{
	"cash":          {"cash on hand", "cash"},
	"petty cash":    {"petty cash", "cash"},
	"bank":          {"bank account", "bank"},
	"bank transfer": {"bank account", "bank"},
	"transfer":      {"bank account", "bank"},
	"cheque":        {"bank account", "bank"},
	"check":         {"bank account", "bank"},
	"card":          {"card", "bank account", "bank"},
	"credit card":   {"card", "bank account", "bank"},
	"debit card":    {"card", "bank account", "bank"},
	"mobile money":  {"mobile wallet", "mobile money", "wallet"},
	"mpesa":         {"m-pesa", "mpesa", "mobile wallet", "wallet"},
	"m pesa":        {"m-pesa", "mpesa", "mobile wallet", "wallet"},
	"wallet":        {"wallet"},
	"ewallet":       {"wallet"},
	"e wallet":      {"wallet"},
}

// expenseCategoryPatterns maps a normalised expense category to expense account
// name substrings.
var expenseCategoryPatterns = map[string][]string{
	"maintenance":   {"maintenance", "repair"},
	"repairs":       {"repair", "maintenance"},
	"repair":        {"repair", "maintenance"},
	"utilities":     {"utilit", "electric", "water"},
	"utility":       {"utilit", "electric", "water"},
	"electricity":   {"electric", "utilit"},
	"water":         {"water", "utilit"},
	"salaries":      {"salar", "payroll", "wage"},
	"salary":        {"salar", "payroll", "wage"},
	"staff":         {"staff", "salar", "payroll"},
	"cleaning":      {"clean"},
	"security":      {"security"},
	"internet":      {"internet", "utilit"},
	"miscellaneous": {"miscellaneous", "sundry", "general"},
	"other":         {"miscellaneous", "sundry", "other"},
}

// incomeCategoryPatterns maps a normalised income category to income account
// name substrings.
var incomeCategoryPatterns = map[string][]string{
	"rental":        {"rental income", "rent"},
	"rent":          {"rental income", "rent"},
	"student rent":  {"student", "rental income"},
	"short stay":    {"short-stay", "short stay", "rental income"},
	"admin fees":    {"admin fee", "fee"},
	"admin fee":     {"admin fee", "fee"},
	"fees":          {"fee"},
	"deposit":       {"deposit"},
	"other":         {"other income", "miscellaneous"},
	"miscellaneous": {"other income", "miscellaneous"},
}

// genericKeywords are tried per kind against every active account of the
// expected type when no specific pattern matched.
var genericKeywords = map[Kind][]string{
	KindPaymentMethod:   {"bank", "cash", "account"},
	KindExpenseCategory: {"miscellaneous", "other", "general"},
	KindIncomeCategory:  {"miscellaneous", "other", "general"},
}

// legacyCodes is the fixed key to account code table kept for charts seeded
// before name based resolution existed.
var legacyCodes = map[Kind]map[string]string{
	KindPaymentMethod: {
		"cash":          "1000",
		"petty cash":    "1002",
		"bank":          "1001",
		"bank transfer": "1001",
		"transfer":      "1001",
		"cheque":        "1001",
		"card":          "1001",
		"mobile money":  "1003",
		"mpesa":         "1003",
		"wallet":        "1003",
	},
	KindExpenseCategory: {
		"maintenance":   "5001",
		"repairs":       "5001",
		"utilities":     "5002",
		"electricity":   "5002",
		"water":         "5002",
		"salaries":      "5003",
		"staff":         "5003",
		"cleaning":      "5004",
		"security":      "5005",
		"miscellaneous": "5099",
		"other":         "5099",
	},
	KindIncomeCategory: {
		"rental":     "4000",
		"rent":       "4000",
		"admin fees": "4200",
		"fees":       "4200",
		"other":      "4100",
	},
}
