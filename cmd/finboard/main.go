package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/config"
	"finboard/internal/core"
	"finboard/internal/export/sheets"
	"finboard/internal/finance"
	"finboard/internal/httpapi"
	"finboard/internal/log"
	"finboard/internal/notify"
	"finboard/internal/session"
	"finboard/internal/state"
)

const usage = `finboard - personal finance dashboard client

Usage: finboard <command> [flags]

Commands:
  login            start a session
  register         create an account
  logout           end the session
  forgot-password  request a password reset code
  reset-password   apply a password reset code
  whoami           show the current user
  overview         show the dashboard overview
  accounts         list accounts
  account          create/update/delete an account
  transactions     list transactions
  transaction      create/update/delete a transaction
  budgets          list budgets
  budget           create/update/delete a budget
  goals            list goals
  goal             create/update/delete a goal
  profile          show or update the profile
  settings         show or update preferences
  export           export transactions to Google Sheets
  watch            poll the overview and prune expired caches
`

type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    state.Store
	session  *session.Store
	finance  *finance.Client
	notifier *notify.Client
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	store := cli.InitStateStore(logger, cfg)
	defer store.Close()

	api := httpapi.NewClient(cfg.APIBaseURL, nil, logger)
	api.SetRateLimit(cfg.RequestRate)
	api.SetMetrics(httpapi.NewMetrics(prometheus.DefaultRegisterer))

	sess := session.NewStore(api, store, logger)
	fin := finance.NewClient(api, sess, store, logger)
	fin.SetCacheTTLs(cfg.OverviewCacheTTL, cfg.AccountsCacheTTL)

	a := &app{
		cfg:     cfg,
		logger:  logger.WithComponent(log.ComponentCLI),
		store:   store,
		session: sess,
		finance: fin,
	}

	if cfg.AMQPURL != "" {
		notifier, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Event notifier unavailable", log.FieldError, err.Error())
		} else {
			a.notifier = notifier
			fin.SetNotifier(notifier)
			defer notifier.Close()
		}
	}

	if err := a.run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", a.describeError(err))
		os.Exit(1)
	}
}

func (a *app) run(command string, args []string) error {
	ctx := context.Background()

	switch command {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		a.publishSessionEvent(ctx, notify.EventSessionEnded)
		a.session.Logout()
		fmt.Println("Logged out.")
		return nil
	case "forgot-password":
		return a.cmdForgotPassword(ctx, args)
	case "reset-password":
		return a.cmdResetPassword(ctx, args)
	case "whoami":
		return a.cmdWhoami(ctx, args)
	case "overview":
		return a.cmdOverview(ctx, args)
	case "accounts":
		return a.cmdAccounts(ctx)
	case "account":
		return a.cmdAccount(ctx, args)
	case "transactions":
		return a.cmdTransactions(ctx)
	case "transaction":
		return a.cmdTransaction(ctx, args)
	case "budgets":
		return a.cmdBudgets(ctx)
	case "budget":
		return a.cmdBudget(ctx, args)
	case "goals":
		return a.cmdGoals(ctx)
	case "goal":
		return a.cmdGoal(ctx, args)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "settings":
		return a.cmdSettings(ctx, args)
	case "export":
		return a.cmdExport(ctx)
	case "watch":
		return a.cmdWatch(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// describeError turns transport and auth failures into actionable messages.
// A 401/403 means the stored session is no longer valid, so it is cleared.
func (a *app) describeError(err error) string {
	if httpapi.IsAuthError(err) && a.session.IsAuthenticated() {
		a.session.Logout()
		return "session expired, please log in again"
	}
	if httpapi.IsNetworkError(err) {
		return fmt.Sprintf("cannot reach backend at %s", a.cfg.APIBaseURL)
	}
	return err.Error()
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	user, err := a.session.Login(ctx, session.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	a.publishSessionEvent(ctx, notify.EventSessionStarted)
	fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

// publishSessionEvent emits a session lifecycle event when a notifier is
// configured. Publish failures are logged, never surfaced to the user.
func (a *app) publishSessionEvent(ctx context.Context, kind string) {
	if a.notifier == nil {
		return
	}
	var userID int64
	if user := a.session.StoredUser(); user != nil {
		userID = user.ID
	}
	if err := a.notifier.Publish(ctx, notify.NewSessionEvent(kind, userID)); err != nil {
		a.logger.Warn("Failed to publish session event", log.FieldError, err.Error())
	}
}

func (a *app) cmdForgotPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot-password", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	fs.Parse(args)

	resp, err := a.session.RequestPasswordReset(ctx, session.ForgotPasswordRequest{Email: *email})
	if err != nil {
		return err
	}
	if resp.Message == "" {
		resp.Message = "Reset code requested. Check your email."
	}
	fmt.Println(resp.Message)
	return nil
}

func (a *app) cmdResetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "reset code")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "new password confirmation")
	fs.Parse(args)

	if err := core.ValidatePassword(*password, *confirm); err != nil {
		return err
	}

	resp, err := a.session.ResetPassword(ctx, session.ResetPasswordRequest{
		Email:       *email,
		Code:        *code,
		NewPassword: *password,
	})
	if err != nil {
		return err
	}
	if resp.Message == "" {
		resp.Message = "Password reset. Log in with the new password."
	}
	fmt.Println(resp.Message)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email")
	birthdate := fs.String("birthdate", "", "birthdate (YYYY-MM-DD)")
	cpf := fs.String("cpf", "", "CPF (11 digits)")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password confirmation")
	fs.Parse(args)

	if err := core.ValidatePassword(*password, *confirm); err != nil {
		return err
	}

	user, err := a.session.Register(ctx, session.RegisterRequest{
		Name:      *name,
		Email:     *email,
		Birthdate: *birthdate,
		CPF:       *cpf,
		Password:  *password,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s <%s>. Log in to start a session.\n", user.Name, user.Email)
	return nil
}

func (a *app) cmdWhoami(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "refresh from the backend")
	showClaims := fs.Bool("claims", false, "show decoded token claims")
	fs.Parse(args)

	if !a.session.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return nil
	}

	user := a.session.StoredUser()
	if *refresh || user == nil {
		refreshed, err := a.session.FetchCurrentUser(ctx)
		if err != nil {
			return err
		}
		user = &refreshed
	}
	fmt.Printf("%s <%s> (id %d)\n", user.Name, user.Email, user.ID)

	if *showClaims {
		claims, err := a.session.TokenClaims()
		if err != nil {
			return err
		}
		for key, value := range claims {
			fmt.Printf("  %s: %v\n", key, value)
		}
	}
	return nil
}

func (a *app) cmdOverview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("overview", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "bypass the cache")
	fs.Parse(args)

	if !*refresh {
		if cached := a.finance.CachedOverview(); cached != nil {
			printOverview(*cached, true)
			return nil
		}
	}

	overview, err := a.finance.Overview(ctx)
	if err != nil {
		return err
	}
	printOverview(overview, false)
	return nil
}

func printOverview(o core.DashboardOverview, cached bool) {
	suffix := ""
	if cached {
		suffix = " (cached)"
	}
	fmt.Printf("Overview for %s%s\n", o.UserName, suffix)
	fmt.Printf("  Balance:   %.2f (available %.2f, saved %.2f)\n", o.CurrentBalance, o.AvailableBalance, o.SavedBalance)
	fmt.Printf("  Month:     +%.2f / -%.2f (net %.2f)\n", o.MonthIncome, o.MonthExpense, o.MonthNet)
	fmt.Printf("  Budgets:   %.0f%% used\n", o.BudgetUsagePercent)
	for _, goal := range o.Goals {
		fmt.Printf("  Goal %q: %.2f of %.2f (%.0f%%), due %s\n",
			goal.Title, goal.CurrentAmount, goal.TargetAmount, goal.ProgressPercent, goal.Deadline)
	}
	for _, activity := range o.Activities {
		fmt.Printf("  Activity: [%s] %s %.2f on %s\n", activity.Type, activity.Title, activity.Amount, activity.Date)
	}
}

func (a *app) cmdAccounts(ctx context.Context) error {
	summary, err := a.finance.AccountsSummary(ctx)
	if err != nil {
		return err
	}
	accounts := a.finance.CachedAccounts()
	for _, account := range accounts {
		fmt.Printf("%4d  %-20s %-12s %-10s %10.2f\n", account.ID, account.Name, account.Bank, account.Kind, account.Balance)
	}
	fmt.Printf("Total %.2f, projected inflows %.2f, projected outflows %.2f\n",
		summary.TotalBalance, summary.ProjectedInflows, summary.ProjectedOutflows)
	return nil
}

func (a *app) cmdAccount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("account", flag.ExitOnError)
	action := fs.String("action", "create", "create, update, or delete")
	id := fs.Int64("id", 0, "account id (update/delete)")
	name := fs.String("name", "", "account name")
	bank := fs.String("bank", "", "bank name")
	kind := fs.String("kind", "current", "current, savings, or credit-card")
	balance := fs.Float64("balance", 0, "balance")
	fs.Parse(args)

	payload := core.AccountPayload{
		Name:    *name,
		Bank:    *bank,
		Kind:    core.AccountKind(*kind),
		Balance: *balance,
	}

	switch *action {
	case "create":
		account, err := a.finance.CreateAccount(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Created account %d\n", account.ID)
	case "update":
		account, err := a.finance.UpdateAccount(ctx, *id, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Updated account %d\n", account.ID)
	case "delete":
		if err := a.finance.DeleteAccount(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("Deleted account %d\n", *id)
	default:
		return fmt.Errorf("unknown action: %s", *action)
	}
	return nil
}

func (a *app) cmdTransactions(ctx context.Context) error {
	transactions, err := a.finance.Transactions(ctx)
	if err != nil {
		return err
	}
	for _, t := range transactions {
		sign := "+"
		if t.Type == core.TransactionExit {
			sign = "-"
		}
		fmt.Printf("%4d  %s  %s%.2f  %-24s %s\n", t.ID, t.Date, sign, t.Amount, t.Description, t.Category)
	}
	return nil
}

func (a *app) cmdTransaction(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transaction", flag.ExitOnError)
	action := fs.String("action", "create", "create, update, or delete")
	id := fs.Int64("id", 0, "transaction id (update/delete)")
	description := fs.String("description", "", "description")
	category := fs.String("category", "", "category")
	kind := fs.String("type", string(core.TransactionExit), "ENTRADA or SAIDA")
	amount := fs.Float64("amount", 0, "amount")
	date := fs.String("date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	accountID := fs.Int64("account", 0, "account id")
	note := fs.String("note", "", "note")
	fs.Parse(args)

	payload := core.TransactionPayload{
		Description: *description,
		Category:    *category,
		Type:        core.TransactionType(*kind),
		Amount:      *amount,
		Date:        *date,
		AccountID:   *accountID,
		Note:        *note,
	}

	switch *action {
	case "create":
		t, err := a.finance.CreateTransaction(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Created transaction %d\n", t.ID)
	case "update":
		t, err := a.finance.UpdateTransaction(ctx, *id, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Updated transaction %d\n", t.ID)
	case "delete":
		if err := a.finance.DeleteTransaction(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("Deleted transaction %d\n", *id)
	default:
		return fmt.Errorf("unknown action: %s", *action)
	}
	return nil
}

func (a *app) cmdBudgets(ctx context.Context) error {
	budgets, err := a.finance.Budgets(ctx)
	if err != nil {
		return err
	}
	for _, b := range budgets {
		fmt.Printf("%4d  %-24s %.2f of %.2f (%s)\n", b.ID, b.Name, b.CurrentSpend, b.Limit, b.Period)
	}
	return nil
}

func (a *app) cmdBudget(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("budget", flag.ExitOnError)
	action := fs.String("action", "create", "create, update, or delete")
	id := fs.Int64("id", 0, "budget id (update/delete)")
	name := fs.String("name", "", "budget name")
	spend := fs.Float64("spend", 0, "current spend")
	limit := fs.Float64("limit", 0, "limit")
	period := fs.String("period", "", "period (YYYY-MM)")
	fs.Parse(args)

	payload := core.BudgetPayload{
		Name:         *name,
		CurrentSpend: *spend,
		Limit:        *limit,
		Period:       *period,
	}

	switch *action {
	case "create":
		b, err := a.finance.CreateBudget(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Created budget %d\n", b.ID)
	case "update":
		b, err := a.finance.UpdateBudget(ctx, *id, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Updated budget %d\n", b.ID)
	case "delete":
		if err := a.finance.DeleteBudget(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("Deleted budget %d\n", *id)
	default:
		return fmt.Errorf("unknown action: %s", *action)
	}
	return nil
}

func (a *app) cmdGoals(ctx context.Context) error {
	goals, err := a.finance.Goals(ctx)
	if err != nil {
		return err
	}
	for _, g := range goals {
		fmt.Printf("%4d  %-24s %.2f of %.2f, due %s\n", g.ID, g.Title, g.CurrentAmount, g.TargetAmount, g.Deadline)
	}
	return nil
}

func (a *app) cmdGoal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("goal", flag.ExitOnError)
	action := fs.String("action", "create", "create, update, or delete")
	id := fs.Int64("id", 0, "goal id (update/delete)")
	title := fs.String("title", "", "goal title")
	current := fs.Float64("current", 0, "current amount")
	target := fs.Float64("target", 0, "target amount")
	deadline := fs.String("deadline", "", "deadline (YYYY-MM-DD)")
	fs.Parse(args)

	payload := core.GoalPayload{
		Title:         *title,
		CurrentAmount: *current,
		TargetAmount:  *target,
		Deadline:      *deadline,
	}

	switch *action {
	case "create":
		g, err := a.finance.CreateGoal(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Created goal %d\n", g.ID)
	case "update":
		g, err := a.finance.UpdateGoal(ctx, *id, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Updated goal %d\n", g.ID)
	case "delete":
		if err := a.finance.DeleteGoal(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("Deleted goal %d\n", *id)
	default:
		return fmt.Errorf("unknown action: %s", *action)
	}
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	name := fs.String("name", "", "new display name")
	phone := fs.String("phone", "", "new phone")
	address := fs.String("address", "", "new address")
	avatar := fs.String("avatar", "", "new avatar URL")
	fs.Parse(args)

	if *name == "" && *phone == "" && *address == "" && *avatar == "" {
		profile, err := a.finance.Profile(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", profile.Name, profile.Email)
		fmt.Printf("  birthdate: %s, CPF: %s\n", profile.Birthdate, profile.CPF)
		fmt.Printf("  phone: %s, address: %s\n", profile.Phone, profile.Address)
		fmt.Printf("  role: %s, plan: %s\n", profile.Role, profile.Plan)
		return nil
	}

	current := a.session.StoredProfile()
	payload := core.ProfilePayload{Name: *name, Phone: *phone, Address: *address, AvatarURL: *avatar}
	if current != nil {
		if payload.Name == "" {
			payload.Name = current.Name
		}
		if payload.Phone == "" {
			payload.Phone = current.Phone
		}
		if payload.Address == "" {
			payload.Address = current.Address
		}
		if payload.AvatarURL == "" {
			payload.AvatarURL = current.AvatarURL
		}
	}

	profile, err := a.finance.UpdateProfile(ctx, payload)
	if err != nil {
		return err
	}
	fmt.Printf("Profile updated for %s\n", profile.Name)
	return nil
}

func (a *app) cmdSettings(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	theme := fs.String("theme", "", "light, dark, or system")
	notifications := fs.String("notifications", "", "on or off")
	twoFactor := fs.String("two-factor", "", "on or off")
	fs.Parse(args)

	settings, err := a.finance.Settings(ctx)
	if err != nil {
		if httpapi.IsNetworkError(err) && *theme == "" && *notifications == "" && *twoFactor == "" {
			fmt.Printf("theme: %s (stored locally; backend unreachable)\n", a.finance.StoredTheme())
			return nil
		}
		return err
	}

	if *theme == "" && *notifications == "" && *twoFactor == "" {
		fmt.Printf("theme: %s, notifications: %t, two-factor: %t\n",
			settings.ThemePreference, settings.NotificationsEnabled, settings.TwoFactorEnabled)
		return nil
	}

	if *theme != "" {
		settings.ThemePreference = core.ThemePreference(*theme)
	}
	if *notifications != "" {
		settings.NotificationsEnabled = *notifications == "on"
	}
	if *twoFactor != "" {
		settings.TwoFactorEnabled = *twoFactor == "on"
	}

	updated, err := a.finance.UpdateSettings(ctx, settings)
	if err != nil {
		return err
	}
	fmt.Printf("Settings saved: theme %s, notifications %t, two-factor %t\n",
		updated.ThemePreference, updated.NotificationsEnabled, updated.TwoFactorEnabled)
	return nil
}

func (a *app) cmdExport(ctx context.Context) error {
	if a.cfg.GoogleSpreadsheetID == "" {
		return fmt.Errorf("set GOOGLE_SPREADSHEET_ID to enable export")
	}

	transactions, err := a.finance.Transactions(ctx)
	if err != nil {
		return err
	}

	exporter, err := sheets.New(ctx, a.cfg.GoogleSpreadsheetID, a.cfg.GoogleSheetName)
	if err != nil {
		return err
	}

	exported, err := exporter.ExportAll(ctx, transactions)
	if err != nil {
		return fmt.Errorf("exported %d of %d transactions: %w", exported, len(transactions), err)
	}
	fmt.Printf("Exported %d transactions\n", exported)
	return nil
}

// cmdWatch polls the overview on an interval and keeps the cache pruned.
// An expired session ends the watch with an error so the process exits
// nonzero instead of idling against a dead token.
func (a *app) cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", time.Minute, "poll interval")
	fs.Parse(args)

	manager := cache.NewManager()
	manager.Register(a.finance)
	manager.StartCleanup(a.cfg.CleanupInterval)

	if a.cfg.MetricsAddr != "" {
		go a.serveMetrics(a.cfg.MetricsAddr)
	}

	ctx, done := cli.GracefulShutdown(a.logger, 10*time.Second, func() {
		manager.Stop()
	})

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		overview, err := a.finance.Overview(ctx)
		switch {
		case err == nil:
			printOverview(overview, false)
		case httpapi.IsAuthError(err):
			manager.Stop()
			return err
		case ctx.Err() != nil:
			// shutdown in progress; the select below exits
		default:
			fmt.Fprintln(os.Stderr, "Error:", a.describeError(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			<-done
			return nil
		}
	}
}

// serveMetrics exposes the collected Prometheus metrics for the lifetime of
// the watch loop.
func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.logger.Info("Metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.logger.Warn("Metrics endpoint stopped", log.FieldError, err.Error())
	}
}
