// Package finance is the typed client for the dashboard resource endpoints:
// profile, settings, accounts, transactions, budgets, goals, and the
// aggregate overview. It normalizes loose wire numerics, keeps short-lived
// per-user caches for the overview and the accounts list, and coalesces
// concurrent overview fetches.
package finance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"finboard/internal/core"
	"finboard/internal/httpapi"
	"finboard/internal/log"
	"finboard/internal/session"
	"finboard/internal/state"
)

// Notifier receives resource-change events after successful mutations.
type Notifier interface {
	ResourceChanged(ctx context.Context, resource string, entityID int64)
}

// Client performs dashboard API operations on behalf of the current session.
type Client struct {
	api      *httpapi.Client
	session  *session.Store
	state    state.Store
	logger   *log.Logger
	notifier Notifier

	overviewTTL time.Duration
	accountsTTL time.Duration

	// Coalesces concurrent overview fetches. Keys include the user scope so
	// a login switch mid-flight cannot hand one user another user's data.
	flight singleflight.Group

	now func() time.Time
}

// NewClient creates a dashboard client. TTLs of zero fall back to the
// defaults (overview 10 minutes, accounts 30 minutes).
func NewClient(api *httpapi.Client, sess *session.Store, st state.Store, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		api:         api,
		session:     sess,
		state:       st,
		logger:      logger.WithComponent(log.ComponentFinance),
		overviewTTL: 10 * time.Minute,
		accountsTTL: 30 * time.Minute,
		now:         time.Now,
	}
}

// SetCacheTTLs overrides the cache lifetimes.
func (c *Client) SetCacheTTLs(overview, accounts time.Duration) {
	if overview > 0 {
		c.overviewTTL = overview
	}
	if accounts > 0 {
		c.accountsTTL = accounts
	}
}

// SetNotifier attaches a resource-change notifier. A nil notifier disables
// event publication.
func (c *Client) SetNotifier(n Notifier) {
	c.notifier = n
}

// requireToken returns the session token, or ErrNotAuthenticated without
// touching the network when no session exists.
func (c *Client) requireToken() (string, error) {
	token := c.session.AccessToken()
	if token == "" {
		return "", session.ErrNotAuthenticated
	}
	return token, nil
}

// userScope namespaces cache and in-flight keys by the current user.
func (c *Client) userScope() string {
	if user := c.session.StoredUser(); user != nil {
		return strconv.FormatInt(user.ID, 10)
	}
	return "anonymous"
}

func (c *Client) overviewCacheKey() string {
	return overviewCachePrefix + c.userScope()
}

func (c *Client) accountsCacheKey() string {
	return accountsCachePrefix + c.userScope()
}

// invalidateFinanceCaches drops the overview and accounts caches for the
// current user. Transaction mutations shift balances, so both go.
func (c *Client) invalidateFinanceCaches() {
	_ = c.state.Delete(c.overviewCacheKey())
	_ = c.state.Delete(c.accountsCacheKey())
}

func (c *Client) notifyChanged(ctx context.Context, resource string, entityID int64) {
	if c.notifier != nil {
		c.notifier.ResourceChanged(ctx, resource, entityID)
	}
}

// Profile fetches the current profile and persists it in the session store.
func (c *Client) Profile(ctx context.Context) (core.UserProfile, error) {
	token, err := c.requireToken()
	if err != nil {
		return core.UserProfile{}, err
	}
	profile, err := httpapi.Do[core.UserProfile](ctx, c.api, "/profile/me", httpapi.RequestOptions{Token: token})
	if err != nil {
		return core.UserProfile{}, err
	}
	c.session.SetStoredProfile(profile)
	return profile, nil
}

// UpdateProfile writes profile fields and persists the returned profile.
func (c *Client) UpdateProfile(ctx context.Context, payload core.ProfilePayload) (core.UserProfile, error) {
	if err := payload.Validate(); err != nil {
		return core.UserProfile{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.UserProfile{}, err
	}
	profile, err := httpapi.Do[core.UserProfile](ctx, c.api, "/profile/me", httpapi.RequestOptions{
		Method: http.MethodPut,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.UserProfile{}, err
	}
	c.session.SetStoredProfile(profile)
	return profile, nil
}

// Settings fetches the current preferences and persists the theme locally.
func (c *Client) Settings(ctx context.Context) (core.SettingsPreferences, error) {
	token, err := c.requireToken()
	if err != nil {
		return core.SettingsPreferences{}, err
	}
	settings, err := httpapi.Do[core.SettingsPreferences](ctx, c.api, "/settings/me", httpapi.RequestOptions{Token: token})
	if err != nil {
		return core.SettingsPreferences{}, err
	}
	c.storeTheme(settings.ThemePreference)
	return settings, nil
}

// UpdateSettings writes preferences.
func (c *Client) UpdateSettings(ctx context.Context, payload core.SettingsPreferences) (core.SettingsPreferences, error) {
	if err := payload.Validate(); err != nil {
		return core.SettingsPreferences{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.SettingsPreferences{}, err
	}
	settings, err := httpapi.Do[core.SettingsPreferences](ctx, c.api, "/settings/me", httpapi.RequestOptions{
		Method: http.MethodPut,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.SettingsPreferences{}, err
	}
	c.storeTheme(settings.ThemePreference)
	return settings, nil
}

func (c *Client) storeTheme(theme core.ThemePreference) {
	if !theme.IsValid() {
		return
	}
	_ = state.SetJSON(c.state, state.KeyTheme, theme)
}

// StoredTheme returns the locally persisted theme preference, or ThemeSystem
// when none was stored. The theme is device state and survives logout.
func (c *Client) StoredTheme() core.ThemePreference {
	theme, ok := state.GetJSON[core.ThemePreference](c.state, state.KeyTheme)
	if !ok || !theme.IsValid() {
		return core.ThemeSystem
	}
	return theme
}

// Transactions lists all transactions.
func (c *Client) Transactions(ctx context.Context) ([]core.Transaction, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}
	raws, err := httpapi.Do[[]rawTransaction](ctx, c.api, "/transactions", httpapi.RequestOptions{Token: token})
	if err != nil {
		return nil, err
	}
	return mapTransactions(raws), nil
}

// CreateTransaction creates a transaction and invalidates the overview and
// accounts caches, since balances may have changed.
func (c *Client) CreateTransaction(ctx context.Context, payload core.TransactionPayload) (core.Transaction, error) {
	if err := payload.Validate(); err != nil {
		return core.Transaction{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Transaction{}, err
	}
	raw, err := httpapi.Do[rawTransaction](ctx, c.api, "/transactions", httpapi.RequestOptions{
		Method: http.MethodPost,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Transaction{}, err
	}
	c.invalidateFinanceCaches()
	c.notifyChanged(ctx, "transactions", raw.ID)
	return mapTransaction(raw), nil
}

// UpdateTransaction rewrites a transaction and invalidates both caches.
func (c *Client) UpdateTransaction(ctx context.Context, id int64, payload core.TransactionPayload) (core.Transaction, error) {
	if err := payload.Validate(); err != nil {
		return core.Transaction{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Transaction{}, err
	}
	raw, err := httpapi.Do[rawTransaction](ctx, c.api, fmt.Sprintf("/transactions/%d", id), httpapi.RequestOptions{
		Method: http.MethodPut,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Transaction{}, err
	}
	c.invalidateFinanceCaches()
	c.notifyChanged(ctx, "transactions", id)
	return mapTransaction(raw), nil
}

// DeleteTransaction removes a transaction and invalidates both caches.
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	token, err := c.requireToken()
	if err != nil {
		return err
	}
	_, _, err = c.api.Request(ctx, fmt.Sprintf("/transactions/%d", id), httpapi.RequestOptions{
		Method: http.MethodDelete,
		Token:  token,
	})
	if err != nil {
		return err
	}
	c.invalidateFinanceCaches()
	c.notifyChanged(ctx, "transactions", id)
	return nil
}

// Budgets lists all budgets.
func (c *Client) Budgets(ctx context.Context) ([]core.Budget, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}
	raws, err := httpapi.Do[[]rawBudget](ctx, c.api, "/budgets", httpapi.RequestOptions{Token: token})
	if err != nil {
		return nil, err
	}
	return mapBudgets(raws), nil
}

// CreateBudget creates a budget. Budget mutations leave the overview cache
// alone; the next natural overview fetch picks up the change.
func (c *Client) CreateBudget(ctx context.Context, payload core.BudgetPayload) (core.Budget, error) {
	if err := payload.Validate(); err != nil {
		return core.Budget{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Budget{}, err
	}
	raw, err := httpapi.Do[rawBudget](ctx, c.api, "/budgets", httpapi.RequestOptions{
		Method: http.MethodPost,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Budget{}, err
	}
	c.notifyChanged(ctx, "budgets", raw.ID)
	return mapBudget(raw), nil
}

// UpdateBudget rewrites a budget.
func (c *Client) UpdateBudget(ctx context.Context, id int64, payload core.BudgetPayload) (core.Budget, error) {
	if err := payload.Validate(); err != nil {
		return core.Budget{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Budget{}, err
	}
	raw, err := httpapi.Do[rawBudget](ctx, c.api, fmt.Sprintf("/budgets/%d", id), httpapi.RequestOptions{
		Method: http.MethodPut,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Budget{}, err
	}
	c.notifyChanged(ctx, "budgets", id)
	return mapBudget(raw), nil
}

// DeleteBudget removes a budget.
func (c *Client) DeleteBudget(ctx context.Context, id int64) error {
	token, err := c.requireToken()
	if err != nil {
		return err
	}
	_, _, err = c.api.Request(ctx, fmt.Sprintf("/budgets/%d", id), httpapi.RequestOptions{
		Method: http.MethodDelete,
		Token:  token,
	})
	if err != nil {
		return err
	}
	c.notifyChanged(ctx, "budgets", id)
	return nil
}

// Goals lists all goals.
func (c *Client) Goals(ctx context.Context) ([]core.Goal, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}
	raws, err := httpapi.Do[[]rawGoal](ctx, c.api, "/goals", httpapi.RequestOptions{Token: token})
	if err != nil {
		return nil, err
	}
	return mapGoals(raws), nil
}

// CreateGoal creates a goal.
func (c *Client) CreateGoal(ctx context.Context, payload core.GoalPayload) (core.Goal, error) {
	if err := payload.Validate(); err != nil {
		return core.Goal{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Goal{}, err
	}
	raw, err := httpapi.Do[rawGoal](ctx, c.api, "/goals", httpapi.RequestOptions{
		Method: http.MethodPost,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Goal{}, err
	}
	c.notifyChanged(ctx, "goals", raw.ID)
	return mapGoal(raw), nil
}

// UpdateGoal rewrites a goal.
func (c *Client) UpdateGoal(ctx context.Context, id int64, payload core.GoalPayload) (core.Goal, error) {
	if err := payload.Validate(); err != nil {
		return core.Goal{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Goal{}, err
	}
	raw, err := httpapi.Do[rawGoal](ctx, c.api, fmt.Sprintf("/goals/%d", id), httpapi.RequestOptions{
		Method: http.MethodPut,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Goal{}, err
	}
	c.notifyChanged(ctx, "goals", id)
	return mapGoal(raw), nil
}

// DeleteGoal removes a goal.
func (c *Client) DeleteGoal(ctx context.Context, id int64) error {
	token, err := c.requireToken()
	if err != nil {
		return err
	}
	_, _, err = c.api.Request(ctx, fmt.Sprintf("/goals/%d", id), httpapi.RequestOptions{
		Method: http.MethodDelete,
		Token:  token,
	})
	if err != nil {
		return err
	}
	c.notifyChanged(ctx, "goals", id)
	return nil
}

// Overview fetches the aggregate dashboard overview. Concurrent calls for
// the same user share a single network request; the fresh result is written
// to the per-user cache.
func (c *Client) Overview(ctx context.Context) (core.DashboardOverview, error) {
	token, err := c.requireToken()
	if err != nil {
		return core.DashboardOverview{}, err
	}

	scope := c.userScope()
	result, err, _ := c.flight.Do(scope, func() (any, error) {
		raw, err := httpapi.Do[rawOverview](ctx, c.api, "/dashboard/overview", httpapi.RequestOptions{Token: token})
		if err != nil {
			return nil, err
		}
		overview := mapOverview(raw)
		if err := writeCache(c.state, overviewCachePrefix+scope, overview, c.now()); err != nil {
			c.logger.WarnContext(ctx, "Failed to write overview cache",
				log.FieldCacheKey, overviewCachePrefix+scope,
				log.FieldError, err.Error())
		}
		return overview, nil
	})
	if err != nil {
		return core.DashboardOverview{}, err
	}
	return result.(core.DashboardOverview), nil
}

// CachedOverview reads the overview cache synchronously for an immediate
// render before any network round trip. Absent or expired entries yield nil.
func (c *Client) CachedOverview() *core.DashboardOverview {
	overview, ok := readCache[core.DashboardOverview](c.state, c.overviewCacheKey(), c.overviewTTL, c.now())
	if !ok {
		return nil
	}
	return &overview
}

// Accounts lists all accounts and refreshes the accounts cache.
func (c *Client) Accounts(ctx context.Context) ([]core.Account, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}
	raws, err := httpapi.Do[[]rawAccount](ctx, c.api, "/accounts", httpapi.RequestOptions{Token: token})
	if err != nil {
		return nil, err
	}
	accounts, err := mapAccounts(raws)
	if err != nil {
		return nil, err
	}
	c.writeAccountsCache(ctx, accounts)
	return accounts, nil
}

// CachedAccounts reads the accounts cache synchronously. Absent or expired
// entries yield nil.
func (c *Client) CachedAccounts() []core.Account {
	accounts, ok := readCache[[]core.Account](c.state, c.accountsCacheKey(), c.accountsTTL, c.now())
	if !ok {
		return nil
	}
	return accounts
}

// CreateAccount creates an account and folds it into the cached list so the
// next read needs no refetch.
func (c *Client) CreateAccount(ctx context.Context, payload core.AccountPayload) (core.Account, error) {
	if err := payload.Validate(); err != nil {
		return core.Account{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Account{}, err
	}
	raw, err := httpapi.Do[rawAccount](ctx, c.api, "/accounts", httpapi.RequestOptions{
		Method: http.MethodPost,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Account{}, err
	}
	account, err := mapAccount(raw)
	if err != nil {
		return core.Account{}, err
	}
	c.mutateAccountsCache(ctx, func(accounts []core.Account) []core.Account {
		return append(accounts, account)
	})
	c.notifyChanged(ctx, "accounts", account.ID)
	return account, nil
}

// UpdateAccount rewrites an account and syncs the cached list in place.
func (c *Client) UpdateAccount(ctx context.Context, id int64, payload core.AccountPayload) (core.Account, error) {
	if err := payload.Validate(); err != nil {
		return core.Account{}, err
	}
	token, err := c.requireToken()
	if err != nil {
		return core.Account{}, err
	}
	raw, err := httpapi.Do[rawAccount](ctx, c.api, fmt.Sprintf("/accounts/%d", id), httpapi.RequestOptions{
		Method: http.MethodPut,
		Token:  token,
		Body:   payload,
	})
	if err != nil {
		return core.Account{}, err
	}
	account, err := mapAccount(raw)
	if err != nil {
		return core.Account{}, err
	}
	c.mutateAccountsCache(ctx, func(accounts []core.Account) []core.Account {
		for i := range accounts {
			if accounts[i].ID == id {
				accounts[i] = account
			}
		}
		return accounts
	})
	c.notifyChanged(ctx, "accounts", id)
	return account, nil
}

// DeleteAccount removes an account and drops it from the cached list.
func (c *Client) DeleteAccount(ctx context.Context, id int64) error {
	token, err := c.requireToken()
	if err != nil {
		return err
	}
	_, _, err = c.api.Request(ctx, fmt.Sprintf("/accounts/%d", id), httpapi.RequestOptions{
		Method: http.MethodDelete,
		Token:  token,
	})
	if err != nil {
		return err
	}
	c.mutateAccountsCache(ctx, func(accounts []core.Account) []core.Account {
		kept := accounts[:0]
		for _, account := range accounts {
			if account.ID != id {
				kept = append(kept, account)
			}
		}
		return kept
	})
	c.notifyChanged(ctx, "accounts", id)
	return nil
}

// AccountsSummary lists accounts and aggregates their balances.
func (c *Client) AccountsSummary(ctx context.Context) (core.AccountsSummary, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return core.AccountsSummary{}, err
	}
	return core.SummarizeAccounts(accounts), nil
}

func (c *Client) writeAccountsCache(ctx context.Context, accounts []core.Account) {
	if err := writeCache(c.state, c.accountsCacheKey(), accounts, c.now()); err != nil {
		c.logger.WarnContext(ctx, "Failed to write accounts cache",
			log.FieldCacheKey, c.accountsCacheKey(),
			log.FieldError, err.Error())
	}
}

// mutateAccountsCache applies an in-place edit to the cached accounts list.
// When no live cache exists there is nothing to sync and the next list
// fetch repopulates it.
func (c *Client) mutateAccountsCache(ctx context.Context, edit func([]core.Account) []core.Account) {
	cached, ok := readCache[[]core.Account](c.state, c.accountsCacheKey(), c.accountsTTL, c.now())
	if !ok {
		return
	}
	c.writeAccountsCache(ctx, edit(cached))
}
