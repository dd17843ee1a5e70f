package core

const (
	TransactionEntry TransactionType = "ENTRADA"
	TransactionExit  TransactionType = "SAIDA"
)

const (
	ThemeLight  ThemePreference = "light"
	ThemeDark   ThemePreference = "dark"
	ThemeSystem ThemePreference = "system"
)

type (
	TransactionType string

	ThemePreference string

	AuthUser struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	UserProfile struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		Birthdate string `json:"birthdate"`
		CPF       string `json:"cpf"`
		Phone     string `json:"phone,omitempty"`
		Address   string `json:"address,omitempty"`
		AvatarURL string `json:"avatarUrl,omitempty"`
		Role      string `json:"role"`
		Plan      string `json:"plan"`
	}

	SettingsPreferences struct {
		ThemePreference      ThemePreference `json:"themePreference"`
		NotificationsEnabled bool            `json:"notificationsEnabled"`
		TwoFactorEnabled     bool            `json:"twoFactorEnabled"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		Description string          `json:"descricao"`
		Category    string          `json:"categoria"`
		Type        TransactionType `json:"tipo"`
		Amount      float64         `json:"valor"`
		Date        string          `json:"data"`
		AccountID   int64           `json:"contaId,omitempty"`
		AccountName string          `json:"nomeConta,omitempty"`
		Note        string          `json:"observacao,omitempty"`
	}

	Budget struct {
		ID           int64   `json:"id"`
		Name         string  `json:"nome"`
		CurrentSpend float64 `json:"gastoAtual"`
		Limit        float64 `json:"limite"`
		Period       string  `json:"competencia"`
	}

	Goal struct {
		ID            int64   `json:"id"`
		Title         string  `json:"titulo"`
		CurrentAmount float64 `json:"atual"`
		TargetAmount  float64 `json:"alvo"`
		Deadline      string  `json:"prazo"`
	}

	Account struct {
		ID      int64       `json:"id"`
		Name    string      `json:"nome"`
		Bank    string      `json:"banco"`
		Kind    AccountKind `json:"tipo"`
		Balance float64     `json:"saldo"`
	}

	MonthlyBalancePoint struct {
		Month string  `json:"month"`
		Value float64 `json:"value"`
	}

	GoalProgress struct {
		ID              int64   `json:"id"`
		Title           string  `json:"title"`
		CurrentAmount   float64 `json:"currentAmount"`
		TargetAmount    float64 `json:"targetAmount"`
		ProgressPercent float64 `json:"progressPercent"`
		Deadline        string  `json:"deadline"`
	}

	Activity struct {
		ID     int64   `json:"id"`
		Title  string  `json:"title"`
		Type   string  `json:"type"`
		Amount float64 `json:"amount"`
		Date   string  `json:"date"`
	}

	DashboardOverview struct {
		UserName           string                `json:"userName"`
		CurrentBalance     float64               `json:"currentBalance"`
		AvailableBalance   float64               `json:"availableBalance"`
		SavedBalance       float64               `json:"savedBalance"`
		MonthIncome        float64               `json:"monthIncome"`
		MonthExpense       float64               `json:"monthExpense"`
		MonthNet           float64               `json:"monthNet"`
		BudgetUsagePercent float64               `json:"budgetUsagePercent"`
		MonthlyBalance     []MonthlyBalancePoint `json:"monthlyBalance"`
		Goals              []GoalProgress        `json:"goals"`
		Activities         []Activity            `json:"activities"`
	}

	// AccountsSummary aggregates account balances for the accounts screen.
	// Credit-card balances are owed amounts, so they count wholly toward
	// projected outflows; current and savings balances count toward inflows.
	AccountsSummary struct {
		TotalBalance      float64
		ProjectedInflows  float64
		ProjectedOutflows float64
	}
)

// IsValid reports whether the transaction type is a known wire value.
func (t TransactionType) IsValid() bool {
	return t == TransactionEntry || t == TransactionExit
}

// IsValid reports whether the theme preference is a known value.
func (t ThemePreference) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	default:
		return false
	}
}

// SummarizeAccounts computes aggregate balances for a list of accounts.
func SummarizeAccounts(accounts []Account) AccountsSummary {
	var summary AccountsSummary
	for _, account := range accounts {
		summary.TotalBalance += account.Balance
		if account.Kind == AccountCreditCard {
			summary.ProjectedOutflows += account.Balance
		} else {
			summary.ProjectedInflows += account.Balance
		}
	}
	return summary
}
