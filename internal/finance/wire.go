package finance

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"finboard/internal/core"
)

// Number decodes a monetary wire value. The backend is loose about numeric
// fields and may send either a JSON number or a numeric string; anything
// non-numeric, non-finite, or missing normalizes to zero. Downstream code
// only ever sees float64.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
			return nil
		}
		*n = Number(parsed)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	*n = Number(f)
	return nil
}

func (n Number) Float() float64 {
	return float64(n)
}

// tolerantSlice decodes a JSON array, normalizing malformed or non-array
// values to an empty slice instead of failing the surrounding document.
type tolerantSlice[T any] []T

func (s *tolerantSlice[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		*s = nil
		return nil
	}
	*s = items
	return nil
}

type (
	rawTransaction struct {
		ID          int64                `json:"id"`
		Description string               `json:"descricao"`
		Category    string               `json:"categoria"`
		Type        core.TransactionType `json:"tipo"`
		Amount      Number               `json:"valor"`
		Date        string               `json:"data"`
		AccountID   int64                `json:"contaId"`
		AccountName string               `json:"nomeConta"`
		Note        string               `json:"observacao"`
	}

	rawBudget struct {
		ID           int64  `json:"id"`
		Name         string `json:"nome"`
		CurrentSpend Number `json:"gastoAtual"`
		Limit        Number `json:"limite"`
		Period       string `json:"competencia"`
	}

	rawGoal struct {
		ID            int64  `json:"id"`
		Title         string `json:"titulo"`
		CurrentAmount Number `json:"atual"`
		TargetAmount  Number `json:"alvo"`
		Deadline      string `json:"prazo"`
	}

	rawAccount struct {
		ID      int64  `json:"id"`
		Name    string `json:"nome"`
		Bank    string `json:"banco"`
		Kind    string `json:"tipo"`
		Balance Number `json:"saldo"`
	}

	rawMonthlyBalance struct {
		Month string `json:"month"`
		Value Number `json:"value"`
	}

	rawGoalProgress struct {
		ID              int64  `json:"id"`
		Title           string `json:"title"`
		CurrentAmount   Number `json:"currentAmount"`
		TargetAmount    Number `json:"targetAmount"`
		ProgressPercent Number `json:"progressPercent"`
		Deadline        string `json:"deadline"`
	}

	rawActivity struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Type   string `json:"type"`
		Amount Number `json:"amount"`
		Date   string `json:"date"`
	}

	rawOverview struct {
		UserName           string                           `json:"userName"`
		CurrentBalance     Number                           `json:"currentBalance"`
		AvailableBalance   Number                           `json:"availableBalance"`
		SavedBalance       Number                           `json:"savedBalance"`
		MonthIncome        Number                           `json:"monthIncome"`
		MonthExpense       Number                           `json:"monthExpense"`
		MonthNet           Number                           `json:"monthNet"`
		BudgetUsagePercent Number                           `json:"budgetUsagePercent"`
		MonthlyBalance     tolerantSlice[rawMonthlyBalance] `json:"monthlyBalance"`
		Goals              tolerantSlice[rawGoalProgress]   `json:"goals"`
		Activities         tolerantSlice[rawActivity]       `json:"activities"`
	}
)

func mapTransaction(raw rawTransaction) core.Transaction {
	return core.Transaction{
		ID:          raw.ID,
		Description: raw.Description,
		Category:    raw.Category,
		Type:        raw.Type,
		Amount:      raw.Amount.Float(),
		Date:        raw.Date,
		AccountID:   raw.AccountID,
		AccountName: raw.AccountName,
		Note:        raw.Note,
	}
}

func mapTransactions(raws []rawTransaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(raws))
	for _, raw := range raws {
		out = append(out, mapTransaction(raw))
	}
	return out
}

func mapBudget(raw rawBudget) core.Budget {
	return core.Budget{
		ID:           raw.ID,
		Name:         raw.Name,
		CurrentSpend: raw.CurrentSpend.Float(),
		Limit:        raw.Limit.Float(),
		Period:       raw.Period,
	}
}

func mapBudgets(raws []rawBudget) []core.Budget {
	out := make([]core.Budget, 0, len(raws))
	for _, raw := range raws {
		out = append(out, mapBudget(raw))
	}
	return out
}

func mapGoal(raw rawGoal) core.Goal {
	return core.Goal{
		ID:            raw.ID,
		Title:         raw.Title,
		CurrentAmount: raw.CurrentAmount.Float(),
		TargetAmount:  raw.TargetAmount.Float(),
		Deadline:      raw.Deadline,
	}
}

func mapGoals(raws []rawGoal) []core.Goal {
	out := make([]core.Goal, 0, len(raws))
	for _, raw := range raws {
		out = append(out, mapGoal(raw))
	}
	return out
}

func mapAccount(raw rawAccount) (core.Account, error) {
	kind, err := core.AccountKindFromWire(raw.Kind)
	if err != nil {
		return core.Account{}, err
	}
	return core.Account{
		ID:      raw.ID,
		Name:    raw.Name,
		Bank:    raw.Bank,
		Kind:    kind,
		Balance: raw.Balance.Float(),
	}, nil
}

func mapAccounts(raws []rawAccount) ([]core.Account, error) {
	out := make([]core.Account, 0, len(raws))
	for _, raw := range raws {
		account, err := mapAccount(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, nil
}

func mapOverview(raw rawOverview) core.DashboardOverview {
	overview := core.DashboardOverview{
		UserName:           raw.UserName,
		CurrentBalance:     raw.CurrentBalance.Float(),
		AvailableBalance:   raw.AvailableBalance.Float(),
		SavedBalance:       raw.SavedBalance.Float(),
		MonthIncome:        raw.MonthIncome.Float(),
		MonthExpense:       raw.MonthExpense.Float(),
		MonthNet:           raw.MonthNet.Float(),
		BudgetUsagePercent: raw.BudgetUsagePercent.Float(),
		MonthlyBalance:     make([]core.MonthlyBalancePoint, 0, len(raw.MonthlyBalance)),
		Goals:              make([]core.GoalProgress, 0, len(raw.Goals)),
		Activities:         make([]core.Activity, 0, len(raw.Activities)),
	}
	for _, point := range raw.MonthlyBalance {
		overview.MonthlyBalance = append(overview.MonthlyBalance, core.MonthlyBalancePoint{
			Month: point.Month,
			Value: point.Value.Float(),
		})
	}
	for _, goal := range raw.Goals {
		overview.Goals = append(overview.Goals, core.GoalProgress{
			ID:              goal.ID,
			Title:           goal.Title,
			CurrentAmount:   goal.CurrentAmount.Float(),
			TargetAmount:    goal.TargetAmount.Float(),
			ProgressPercent: goal.ProgressPercent.Float(),
			Deadline:        goal.Deadline,
		})
	}
	for _, activity := range raw.Activities {
		overview.Activities = append(overview.Activities, core.Activity{
			ID:     activity.ID,
			Title:  activity.Title,
			Type:   activity.Type,
			Amount: activity.Amount.Float(),
			Date:   activity.Date,
		})
	}
	return overview
}
