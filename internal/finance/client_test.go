package finance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finboard/internal/core"
	"finboard/internal/httpapi"
	"finboard/internal/session"
	"finboard/internal/state"
)

type testEnv struct {
	client *Client
	store  *state.MemoryStore
	hits   *atomic.Int64
	now    time.Time
}

// newTestEnv wires a finance client against an httptest server with a
// logged-in user (ID 7) already persisted in the state store.
func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()

	env := &testEnv{
		store: state.NewMemoryStore(),
		hits:  new(atomic.Int64),
		now:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	api := httpapi.NewClient(server.URL, server.Client(), nil)
	sess := session.NewStore(api, env.store, nil)

	if err := state.SetJSON(env.store, state.KeyAccessToken, "test-token"); err != nil {
		t.Fatal(err)
	}
	user := core.AuthUser{ID: 7, Name: "Ana", Email: "ana@example.com"}
	if err := state.SetJSON(env.store, state.KeyUser, user); err != nil {
		t.Fatal(err)
	}

	env.client = NewClient(api, sess, env.store, nil)
	env.client.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func jsonResponse(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

const overviewBody = `{
	"userName": "Ana",
	"currentBalance": "1500.50",
	"monthIncome": 3000,
	"monthExpense": 1499.50,
	"monthNet": 1500.50,
	"goals": [{"id": 1, "title": "Viagem", "currentAmount": 200, "targetAmount": 1000, "progressPercent": 20, "deadline": "2026-12-31"}],
	"activities": []
}`

const accountsBody = `[
	{"id": 1, "nome": "Conta Corrente", "banco": "Nubank", "tipo": "CORRENTE", "saldo": "2500.00"},
	{"id": 2, "nome": "Cartão", "banco": "Itaú", "tipo": "CARTAO_CREDITO", "saldo": 800}
]`

func TestOperationsRequireSession(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, `{}`)
	})
	// Drop the token so every operation below should fail fast.
	if err := env.store.Delete(state.KeyAccessToken); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	operations := map[string]func() error{
		"Overview":          func() error { _, err := env.client.Overview(ctx); return err },
		"Accounts":          func() error { _, err := env.client.Accounts(ctx); return err },
		"Transactions":      func() error { _, err := env.client.Transactions(ctx); return err },
		"Budgets":           func() error { _, err := env.client.Budgets(ctx); return err },
		"Goals":             func() error { _, err := env.client.Goals(ctx); return err },
		"Profile":           func() error { _, err := env.client.Profile(ctx); return err },
		"Settings":          func() error { _, err := env.client.Settings(ctx); return err },
		"DeleteTransaction": func() error { return env.client.DeleteTransaction(ctx, 1) },
		"DeleteAccount":     func() error { return env.client.DeleteAccount(ctx, 1) },
	}

	for name, op := range operations {
		t.Run(name, func(t *testing.T) {
			err := op()
			if !errors.Is(err, session.ErrNotAuthenticated) {
				t.Errorf("error = %v, want ErrNotAuthenticated", err)
			}
			if !httpapi.IsAuthError(err) {
				t.Errorf("IsAuthError(%v) = false, want true", err)
			}
		})
	}

	if got := env.hits.Load(); got != 0 {
		t.Errorf("backend hits = %d, want 0 without a session", got)
	}
}

func TestOverviewCachesResult(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dashboard/overview" {
			t.Errorf("path = %q, want /dashboard/overview", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		jsonResponse(w, overviewBody)
	})

	overview, err := env.client.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if overview.UserName != "Ana" {
		t.Errorf("UserName = %q, want Ana", overview.UserName)
	}
	if overview.CurrentBalance != 1500.50 {
		t.Errorf("CurrentBalance = %v, want 1500.50", overview.CurrentBalance)
	}
	if len(overview.Goals) != 1 || overview.Goals[0].Title != "Viagem" {
		t.Errorf("Goals = %+v", overview.Goals)
	}
	if overview.Activities == nil {
		t.Error("Activities = nil, want empty slice")
	}

	cached := env.client.CachedOverview()
	if cached == nil {
		t.Fatal("CachedOverview() = nil right after a fetch")
	}
	if cached.CurrentBalance != 1500.50 {
		t.Errorf("cached CurrentBalance = %v, want 1500.50", cached.CurrentBalance)
	}
	if got := env.hits.Load(); got != 1 {
		t.Errorf("backend hits = %d, want 1 (cache read is local)", got)
	}
}

func TestCachedOverviewExpires(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, overviewBody)
	})

	if _, err := env.client.Overview(context.Background()); err != nil {
		t.Fatal(err)
	}

	env.advance(9 * time.Minute)
	if env.client.CachedOverview() == nil {
		t.Error("CachedOverview() = nil at 9 minutes, want fresh entry")
	}

	env.advance(2 * time.Minute)
	if got := env.client.CachedOverview(); got != nil {
		t.Errorf("CachedOverview() = %+v at 11 minutes, want nil", got)
	}
}

func TestOverviewCacheScopedPerUser(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, overviewBody)
	})

	if _, err := env.client.Overview(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Switch the stored user; the other user's cache must not be visible.
	other := core.AuthUser{ID: 99, Name: "Bruno", Email: "bruno@example.com"}
	if err := state.SetJSON(env.store, state.KeyUser, other); err != nil {
		t.Fatal(err)
	}
	if got := env.client.CachedOverview(); got != nil {
		t.Errorf("CachedOverview() for user 99 = %+v, want nil", got)
	}

	keys, err := env.store.Keys(overviewCachePrefix)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != overviewCachePrefix+"7" {
		t.Errorf("cache keys = %v, want [%s7]", keys, overviewCachePrefix)
	}
}

func TestOverviewCoalescesConcurrentFetches(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		jsonResponse(w, overviewBody)
	})

	var wg sync.WaitGroup
	var errCount atomic.Int64
	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.client.Overview(context.Background()); err != nil {
				errCount.Add(1)
			}
		}()
	}

	start()
	<-entered // first fetch is in flight
	start()
	time.Sleep(50 * time.Millisecond) // let the second call join the flight
	close(release)
	wg.Wait()

	if got := errCount.Load(); got != 0 {
		t.Fatalf("errors = %d, want 0", got)
	}
	if got := env.hits.Load(); got != 1 {
		t.Errorf("backend hits = %d, want 1 for coalesced fetches", got)
	}
}

func TestOverviewInFlightNotSharedAcrossUsers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		blocked := false
		once.Do(func() {
			blocked = true
			close(entered)
		})
		if blocked {
			<-release
		}
		jsonResponse(w, overviewBody)
	})
	defer close(release)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := env.client.Overview(context.Background()); err != nil {
			t.Errorf("first user's Overview() error = %v", err)
		}
	}()
	<-entered // user 7's fetch is blocked in flight

	// A login switch while that fetch is pending must not hand the new
	// user the old user's result.
	other := core.AuthUser{ID: 99, Name: "Bruno", Email: "bruno@example.com"}
	if err := state.SetJSON(env.store, state.KeyUser, other); err != nil {
		t.Fatal(err)
	}

	if _, err := env.client.Overview(context.Background()); err != nil {
		t.Fatalf("second user's Overview() error = %v", err)
	}
	if got := env.hits.Load(); got != 2 {
		t.Errorf("backend hits = %d, want 2 (no coalescing across users)", got)
	}

	release <- struct{}{} // unblock user 7's fetch
	wg.Wait()

	keys, err := env.store.Keys(overviewCachePrefix)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{overviewCachePrefix + "7": true, overviewCachePrefix + "99": true}
	if len(keys) != 2 || !want[keys[0]] || !want[keys[1]] {
		t.Errorf("cache keys = %v, want one per user", keys)
	}
}

func TestTransactionMutationsInvalidateCaches(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/dashboard/overview":
			jsonResponse(w, overviewBody)
		case r.URL.Path == "/accounts":
			jsonResponse(w, accountsBody)
		case r.URL.Path == "/transactions" && r.Method == http.MethodPost:
			jsonResponse(w, `{"id": 10, "descricao": "Mercado", "categoria": "Alimentação", "tipo": "SAIDA", "valor": "89.90", "data": "2026-03-10"}`)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	ctx := context.Background()
	if _, err := env.client.Overview(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := env.client.Accounts(ctx); err != nil {
		t.Fatal(err)
	}
	if env.client.CachedOverview() == nil || env.client.CachedAccounts() == nil {
		t.Fatal("expected both caches populated")
	}

	created, err := env.client.CreateTransaction(ctx, core.TransactionPayload{
		Description: "Mercado",
		Category:    "Alimentação",
		Type:        core.TransactionExit,
		Amount:      89.90,
		Date:        "2026-03-10",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if created.ID != 10 || created.Amount != 89.90 {
		t.Errorf("created = %+v", created)
	}

	if got := env.client.CachedOverview(); got != nil {
		t.Error("overview cache survived a transaction create")
	}
	if got := env.client.CachedAccounts(); got != nil {
		t.Error("accounts cache survived a transaction create")
	}

	// Repopulate and check delete as well.
	if _, err := env.client.Overview(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.client.DeleteTransaction(ctx, 10); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if got := env.client.CachedOverview(); got != nil {
		t.Error("overview cache survived a transaction delete")
	}
}

func TestInvalidTransactionNeverReachesBackend(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, `{}`)
	})

	_, err := env.client.CreateTransaction(context.Background(), core.TransactionPayload{
		Description: "",
		Category:    "x",
		Type:        core.TransactionExit,
		Amount:      1,
		Date:        "2026-03-10",
	})
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Errorf("error = %v, want ErrEmptyDescription", err)
	}
	if got := env.hits.Load(); got != 0 {
		t.Errorf("backend hits = %d, want 0 for invalid payload", got)
	}
}

func TestAccountsCacheLifecycle(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/accounts" && r.Method == http.MethodGet:
			jsonResponse(w, accountsBody)
		case r.URL.Path == "/accounts" && r.Method == http.MethodPost:
			jsonResponse(w, `{"id": 3, "nome": "Poupança", "banco": "Caixa", "tipo": "POUPANCA", "saldo": 100}`)
		case r.URL.Path == "/accounts/1" && r.Method == http.MethodPut:
			jsonResponse(w, `{"id": 1, "nome": "Conta Nova", "banco": "Nubank", "tipo": "CORRENTE", "saldo": 3000}`)
		case r.URL.Path == "/accounts/2" && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	ctx := context.Background()
	accounts, err := env.client.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(accounts))
	}
	if accounts[0].Kind != core.AccountCurrent || accounts[1].Kind != core.AccountCreditCard {
		t.Errorf("kinds = %v, %v", accounts[0].Kind, accounts[1].Kind)
	}
	if accounts[0].Balance != 2500 {
		t.Errorf("Balance = %v, want 2500 (string wire value)", accounts[0].Balance)
	}

	// Create folds the new account into the cached list without a refetch.
	created, err := env.client.CreateAccount(ctx, core.AccountPayload{
		Name: "Poupança", Bank: "Caixa", Kind: core.AccountSavings, Balance: 100,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	cached := env.client.CachedAccounts()
	if len(cached) != 3 || cached[2].ID != created.ID {
		t.Errorf("cached after create = %+v", cached)
	}

	// Update replaces the matching entry in place.
	if _, err := env.client.UpdateAccount(ctx, 1, core.AccountPayload{
		Name: "Conta Nova", Bank: "Nubank", Kind: core.AccountCurrent, Balance: 3000,
	}); err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}
	cached = env.client.CachedAccounts()
	if cached[0].Name != "Conta Nova" || cached[0].Balance != 3000 {
		t.Errorf("cached[0] after update = %+v", cached[0])
	}

	// Delete drops the entry.
	if err := env.client.DeleteAccount(ctx, 2); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	cached = env.client.CachedAccounts()
	if len(cached) != 2 {
		t.Fatalf("len(cached) after delete = %d, want 2", len(cached))
	}
	for _, account := range cached {
		if account.ID == 2 {
			t.Errorf("deleted account still cached: %+v", account)
		}
	}
}

func TestAccountMutationWithColdCacheIsNoop(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, `{"id": 3, "nome": "Poupança", "banco": "Caixa", "tipo": "POUPANCA", "saldo": 100}`)
	})

	if _, err := env.client.CreateAccount(context.Background(), core.AccountPayload{
		Name: "Poupança", Bank: "Caixa", Kind: core.AccountSavings, Balance: 100,
	}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if got := env.client.CachedAccounts(); got != nil {
		t.Errorf("CachedAccounts() = %+v, want nil when no list was fetched", got)
	}
}

func TestCachedAccountsExpires(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, accountsBody)
	})

	if _, err := env.client.Accounts(context.Background()); err != nil {
		t.Fatal(err)
	}

	env.advance(29 * time.Minute)
	if env.client.CachedAccounts() == nil {
		t.Error("CachedAccounts() = nil at 29 minutes, want fresh entry")
	}

	env.advance(2 * time.Minute)
	if got := env.client.CachedAccounts(); got != nil {
		t.Errorf("CachedAccounts() = %+v at 31 minutes, want nil", got)
	}
}

func TestAccountsSummary(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, accountsBody)
	})

	summary, err := env.client.AccountsSummary(context.Background())
	if err != nil {
		t.Fatalf("AccountsSummary() error = %v", err)
	}
	if summary.TotalBalance != 3300 {
		t.Errorf("TotalBalance = %v, want 3300", summary.TotalBalance)
	}
	if summary.ProjectedInflows != 2500 {
		t.Errorf("ProjectedInflows = %v, want 2500", summary.ProjectedInflows)
	}
	if summary.ProjectedOutflows != 800 {
		t.Errorf("ProjectedOutflows = %v, want 800", summary.ProjectedOutflows)
	}
}

type recordedEvent struct {
	resource string
	entityID int64
}

type fakeNotifier struct {
	events []recordedEvent
}

func (f *fakeNotifier) ResourceChanged(ctx context.Context, resource string, entityID int64) {
	f.events = append(f.events, recordedEvent{resource, entityID})
}

func TestMutationsNotify(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			jsonResponse(w, `{"id": 5, "nome": "Lazer", "gastoAtual": 0, "limite": 300, "competencia": "2026-03"}`)
		}
	})
	notifier := &fakeNotifier{}
	env.client.SetNotifier(notifier)

	ctx := context.Background()
	if _, err := env.client.CreateBudget(ctx, core.BudgetPayload{
		Name: "Lazer", Limit: 300, Period: "2026-03",
	}); err != nil {
		t.Fatal(err)
	}
	if err := env.client.DeleteBudget(ctx, 5); err != nil {
		t.Fatal(err)
	}

	want := []recordedEvent{{"budgets", 5}, {"budgets", 5}}
	if len(notifier.events) != len(want) {
		t.Fatalf("events = %+v, want %+v", notifier.events, want)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Errorf("events[%d] = %+v, want %+v", i, notifier.events[i], want[i])
		}
	}
}

func TestCleanExpired(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dashboard/overview":
			jsonResponse(w, overviewBody)
		default:
			jsonResponse(w, accountsBody)
		}
	})

	ctx := context.Background()
	if _, err := env.client.Overview(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := env.client.Accounts(ctx); err != nil {
		t.Fatal(err)
	}

	// Overview expires at 10 minutes, accounts at 30.
	env.advance(15 * time.Minute)
	if removed := env.client.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if env.client.CachedAccounts() == nil {
		t.Error("accounts cache removed while still fresh")
	}

	env.advance(20 * time.Minute)
	if removed := env.client.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}

	// Session keys are never janitor targets.
	if token, ok := state.GetJSON[string](env.store, state.KeyAccessToken); !ok || token != "test-token" {
		t.Errorf("access token = %q, %v after cleanup", token, ok)
	}
}

func TestSettingsPersistTheme(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, `{"themePreference": "dark", "notificationsEnabled": true, "twoFactorEnabled": false}`)
	})

	if got := env.client.StoredTheme(); got != core.ThemeSystem {
		t.Errorf("StoredTheme() before any fetch = %v, want system", got)
	}

	if _, err := env.client.Settings(context.Background()); err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if got := env.client.StoredTheme(); got != core.ThemeDark {
		t.Errorf("StoredTheme() = %v, want dark", got)
	}

	// The theme is device state, not session state.
	env.client.session.Logout()
	if got := env.client.StoredTheme(); got != core.ThemeDark {
		t.Errorf("StoredTheme() after logout = %v, want dark", got)
	}
}

func TestLoginOverviewLogoutFlow(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			jsonResponse(w, `{"accessToken": "tok-2", "user": {"id": 7, "name": "Ana", "email": "ana@example.com"}}`)
		case "/dashboard/overview":
			jsonResponse(w, overviewBody)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	// Start from a clean device.
	env.store.Delete(state.KeyAccessToken)
	env.store.Delete(state.KeyUser)

	ctx := context.Background()
	sess := env.client.session

	if _, err := env.client.Overview(ctx); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("Overview() before login error = %v", err)
	}

	if _, err := sess.Login(ctx, session.LoginRequest{Email: "ana@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	overview, err := env.client.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if overview.UserName != "Ana" {
		t.Errorf("UserName = %q", overview.UserName)
	}
	if env.client.CachedOverview() == nil {
		t.Error("CachedOverview() = nil after fetch")
	}

	sess.Logout()

	// The session is gone and the cached data is no longer reachable: the
	// cache key is scoped to the logged-out user's ID.
	if _, err := env.client.Overview(ctx); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("Overview() after logout error = %v", err)
	}
	if got := env.client.CachedOverview(); got != nil {
		t.Errorf("CachedOverview() after logout = %+v, want nil", got)
	}
}

func TestProfileRoundTripUpdatesSession(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, `{"id": 7, "name": "Ana Paula", "email": "ana@example.com", "birthdate": "1990-01-15", "cpf": "12345678901", "role": "USER", "plan": "FREE"}`)
	})

	profile, err := env.client.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.Name != "Ana Paula" {
		t.Errorf("Name = %q", profile.Name)
	}

	// The session store denormalizes the profile into the user record.
	user, ok := state.GetJSON[core.AuthUser](env.store, state.KeyUser)
	if !ok || user.Name != "Ana Paula" {
		t.Errorf("stored user = %+v, %v", user, ok)
	}
}
