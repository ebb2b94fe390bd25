package rbac

// Roles recognised by the finance back office.
const (
	RoleAdmin        = "admin"
	RoleFinance      = "finance"
	RoleFinanceAdmin = "finance_admin"
	RoleFinanceUser  = "finance_user"
	RoleCEO          = "ceo"
)

// Header names populated by the upstream gateway after authentication.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

var (
	// ReadRoles may view statements, ledgers and audit history.
	ReadRoles = []string{RoleAdmin, RoleFinance, RoleFinanceAdmin, RoleFinanceUser, RoleCEO}
	// PostingRoles may trigger business events that post to the ledger.
	PostingRoles = []string{RoleAdmin, RoleFinance, RoleFinanceAdmin, RoleFinanceUser}
	// AccountAdminRoles may change the chart of accounts.
	AccountAdminRoles = []string{RoleAdmin, RoleFinanceAdmin}
)
