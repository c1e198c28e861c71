package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"supportconsole/internal/cluster"
	"supportconsole/internal/config"
	"supportconsole/internal/jobrunner"
	"supportconsole/internal/store"

	"github.com/google/uuid"
)

// write is one mutating repository call, tagged with the transaction it ran in.
type write struct {
	op string
	tx store.DBTransaction
}

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errors.New("fakeTx: not a database")
}

func (t *fakeTx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("fakeTx: not a database")
}

func (t *fakeTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

// fakeRepo is an in-memory store.Repository. Writes are applied immediately;
// tests inspect the transactions and the write journal.
type fakeRepo struct {
	users       map[uuid.UUID]*store.User
	challenges  map[uuid.UUID]*store.Challenge
	rules       map[uuid.UUID][]store.ChallengeRule
	options     []store.Option
	accounts    map[uuid.UUID]*store.TradingAccount
	activations map[uuid.UUID]*store.FundedActivation

	payments     map[uuid.UUID]*store.Payment
	orders       map[uuid.UUID]*store.Order
	orderOptions map[uuid.UUID][]uuid.UUID
	audits       []store.AuditRecord

	accountOptions map[uuid.UUID][]uuid.UUID
	payouts        map[uuid.UUID]*store.Payout
	promos         map[string]*store.Promo

	// auditCtxErrs holds ctx.Err() as seen by each audit insert.
	auditCtxErrs []error

	txs    []*fakeTx
	writes []write

	// fail makes the named method return the error.
	fail map[string]error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:        map[uuid.UUID]*store.User{},
		challenges:   map[uuid.UUID]*store.Challenge{},
		rules:        map[uuid.UUID][]store.ChallengeRule{},
		accounts:     map[uuid.UUID]*store.TradingAccount{},
		activations:  map[uuid.UUID]*store.FundedActivation{},
		payments:     map[uuid.UUID]*store.Payment{},
		orders:       map[uuid.UUID]*store.Order{},
		orderOptions: map[uuid.UUID][]uuid.UUID{},
		fail:         map[string]error{},

		accountOptions: map[uuid.UUID][]uuid.UUID{},
		payouts:        map[uuid.UUID]*store.Payout{},
		promos:         map[string]*store.Promo{},
	}
}

func (r *fakeRepo) mutate(op string, tx store.DBTransaction) error {
	if err := r.fail[op]; err != nil {
		return err
	}
	r.writes = append(r.writes, write{op: op, tx: tx})
	return nil
}

func (r *fakeRepo) auditActions() []string {
	actions := make([]string, 0, len(r.audits))
	for _, a := range r.audits {
		actions = append(actions, a.ActionType)
	}
	return actions
}

func (r *fakeRepo) BeginTx(context.Context) (store.Tx, error) {
	if err := r.fail["BeginTx"]; err != nil {
		return nil, err
	}
	tx := &fakeTx{}
	r.txs = append(r.txs, tx)
	return tx, nil
}

func (r *fakeRepo) GetUserByUUID(_ context.Context, id uuid.UUID) (*store.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) GetUserByCTID(_ context.Context, ctid int64) (*store.User, error) {
	for _, u := range r.users {
		if u.CTID.Valid && u.CTID.Int64 == ctid {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) SearchUsers(_ context.Context, pattern string) ([]store.User, error) {
	var out []store.User
	for _, u := range r.users {
		if strings.Contains(u.Email, pattern) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetPublishedChallenges(context.Context) ([]store.Challenge, error) {
	var out []store.Challenge
	for _, c := range r.challenges {
		if c.Published {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetChallengeByUUID(_ context.Context, id uuid.UUID) (*store.Challenge, error) {
	if c, ok := r.challenges[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("challenge %s: %w", id, store.ErrNotFound)
}

func (r *fakeRepo) GetChallengeRules(_ context.Context, id uuid.UUID) ([]store.ChallengeRule, error) {
	return r.rules[id], nil
}

func (r *fakeRepo) GetAllOptions(context.Context) ([]store.Option, error) {
	return r.options, nil
}

func (r *fakeRepo) CreatePayment(_ context.Context, tx store.DBTransaction, p *store.Payment) error {
	if err := r.mutate("CreatePayment", tx); err != nil {
		return err
	}
	r.payments[p.ID] = p
	return nil
}

func (r *fakeRepo) CreateOrder(_ context.Context, tx store.DBTransaction, o *store.Order) error {
	if err := r.mutate("CreateOrder", tx); err != nil {
		return err
	}
	r.orders[o.ID] = o
	return nil
}

func (r *fakeRepo) CreateOrderOption(_ context.Context, tx store.DBTransaction, orderID, optionID uuid.UUID) error {
	if err := r.mutate("CreateOrderOption", tx); err != nil {
		return err
	}
	r.orderOptions[orderID] = append(r.orderOptions[orderID], optionID)
	return nil
}

func (r *fakeRepo) DeleteOrderOptions(_ context.Context, tx store.DBTransaction, orderID uuid.UUID) error {
	if err := r.mutate("DeleteOrderOptions", tx); err != nil {
		return err
	}
	delete(r.orderOptions, orderID)
	return nil
}

func (r *fakeRepo) DeleteOrder(_ context.Context, tx store.DBTransaction, orderID uuid.UUID) error {
	if err := r.mutate("DeleteOrder", tx); err != nil {
		return err
	}
	delete(r.orders, orderID)
	return nil
}

func (r *fakeRepo) DeletePayment(_ context.Context, tx store.DBTransaction, paymentID uuid.UUID) error {
	if err := r.mutate("DeletePayment", tx); err != nil {
		return err
	}
	delete(r.payments, paymentID)
	return nil
}

func (r *fakeRepo) GetTradingAccountByUUID(_ context.Context, id uuid.UUID) (*store.TradingAccount, error) {
	if a, ok := r.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, fmt.Errorf("trading account %s: %w", id, store.ErrNotFound)
}

func (r *fakeRepo) GetTradingAccountByCtrader(_ context.Context, ctraderID int64) (*store.TradingAccount, error) {
	for _, a := range r.accounts {
		if a.CtraderAccount.Valid && a.CtraderAccount.Int64 == ctraderID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) GetTradingAccountsByOrder(_ context.Context, orderID uuid.UUID) ([]store.TradingAccount, error) {
	if err := r.fail["GetTradingAccountsByOrder"]; err != nil {
		return nil, err
	}
	var out []store.TradingAccount
	for _, a := range r.accounts {
		if a.OrderID == orderID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetTradingAccountsByUser(context.Context, uuid.UUID) ([]store.TradingAccount, error) {
	return nil, nil
}

func (r *fakeRepo) MarkAccountSucceeded(_ context.Context, tx store.DBTransaction, id uuid.UUID, reason store.Reason) error {
	if err := r.mutate("MarkAccountSucceeded", tx); err != nil {
		return err
	}
	a := r.accounts[id]
	a.Success = sql.NullInt64{Int64: 1, Valid: true}
	a.Reason = sql.NullString{String: string(reason), Valid: true}
	return nil
}

func (r *fakeRepo) DeactivateAccount(_ context.Context, tx store.DBTransaction, id uuid.UUID, reason store.Reason) error {
	if err := r.mutate("DeactivateAccount", tx); err != nil {
		return err
	}
	a := r.accounts[id]
	a.Success = sql.NullInt64{Int64: 0, Valid: true}
	a.Reason = sql.NullString{String: string(reason), Valid: true}
	return nil
}

func (r *fakeRepo) ReactivateAccount(_ context.Context, tx store.DBTransaction, id uuid.UUID, reason store.Reason, profitTarget *float64) error {
	if err := r.mutate("ReactivateAccount", tx); err != nil {
		return err
	}
	a := r.accounts[id]
	a.Success = sql.NullInt64{}
	a.Reason = sql.NullString{String: string(reason), Valid: reason != ""}
	if profitTarget != nil {
		a.ProfitTargetPercent = sql.NullFloat64{Float64: *profitTarget, Valid: true}
	}
	return nil
}

func (r *fakeRepo) UpdateProfitTarget(_ context.Context, tx store.DBTransaction, id uuid.UUID, target float64, reason store.Reason) error {
	if err := r.mutate("UpdateProfitTarget", tx); err != nil {
		return err
	}
	a := r.accounts[id]
	a.ProfitTargetPercent = sql.NullFloat64{Float64: target, Valid: true}
	a.Reason = sql.NullString{String: string(reason), Valid: true}
	return nil
}

func (r *fakeRepo) UpdateCtraderAccount(_ context.Context, tx store.DBTransaction, id uuid.UUID, ctraderID int64) error {
	if err := r.mutate("UpdateCtraderAccount", tx); err != nil {
		return err
	}
	r.accounts[id].CtraderAccount = sql.NullInt64{Int64: ctraderID, Valid: true}
	return nil
}

func (r *fakeRepo) RestoreAccountActive(_ context.Context, tx store.DBTransaction, id uuid.UUID, reason sql.NullString) error {
	if err := r.mutate("RestoreAccountActive", tx); err != nil {
		return err
	}
	a := r.accounts[id]
	a.Success = sql.NullInt64{}
	a.Reason = reason
	return nil
}

func (r *fakeRepo) GetTradingAccountOptions(_ context.Context, id uuid.UUID) ([]store.Option, error) {
	var out []store.Option
	for _, optID := range r.accountOptions[id] {
		for _, opt := range r.options {
			if opt.ID == optID {
				out = append(out, opt)
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) AddTradingAccountOption(_ context.Context, tx store.DBTransaction, id, optionID uuid.UUID) error {
	if err := r.mutate("AddTradingAccountOption", tx); err != nil {
		return err
	}
	r.accountOptions[id] = append(r.accountOptions[id], optionID)
	return nil
}

func (r *fakeRepo) RemoveTradingAccountOption(_ context.Context, tx store.DBTransaction, id, optionID uuid.UUID) error {
	if err := r.mutate("RemoveTradingAccountOption", tx); err != nil {
		return err
	}
	kept := r.accountOptions[id][:0]
	for _, o := range r.accountOptions[id] {
		if o != optionID {
			kept = append(kept, o)
		}
	}
	r.accountOptions[id] = kept
	return nil
}

func (r *fakeRepo) GetOrdersByUser(context.Context, uuid.UUID) ([]store.OrderSummary, error) {
	return nil, nil
}

func (r *fakeRepo) GetPayoutsByStatus(_ context.Context, status store.PayoutStatus) ([]store.Payout, error) {
	var out []store.Payout
	for _, p := range r.payouts {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetPayoutsByUser(_ context.Context, userID uuid.UUID) ([]store.Payout, error) {
	var out []store.Payout
	for _, p := range r.payouts {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetPayoutByUUID(_ context.Context, id uuid.UUID) (*store.Payout, error) {
	if p, ok := r.payouts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, fmt.Errorf("payout %s: %w", id, store.ErrNotFound)
}

func (r *fakeRepo) UpdatePayoutStatus(_ context.Context, tx store.DBTransaction, id uuid.UUID, status store.PayoutStatus) error {
	if err := r.mutate("UpdatePayoutStatus", tx); err != nil {
		return err
	}
	r.payouts[id].Status = status
	return nil
}

func (r *fakeRepo) GetPromoByCode(_ context.Context, code string) (*store.Promo, error) {
	if p, ok := r.promos[code]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("promo %s: %w", code, store.ErrNotFound)
}

func (r *fakeRepo) CreatePromo(_ context.Context, tx store.DBTransaction, p *store.Promo) error {
	if err := r.mutate("CreatePromo", tx); err != nil {
		return err
	}
	r.promos[p.Code] = p
	return nil
}

func (r *fakeRepo) GetPendingFundedActivation(_ context.Context, accountID uuid.UUID) (*store.FundedActivation, error) {
	if a, ok := r.activations[accountID]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("pending activation for %s: %w", accountID, store.ErrNotFound)
}

func (r *fakeRepo) InsertAuditRecord(ctx context.Context, tx store.DBTransaction, rec *store.AuditRecord) error {
	r.auditCtxErrs = append(r.auditCtxErrs, ctx.Err())
	if err := r.mutate("InsertAuditRecord", tx); err != nil {
		return err
	}
	rec.ID = int64(len(r.audits) + 1)
	r.audits = append(r.audits, *rec)
	return nil
}

func (r *fakeRepo) GetRecentAuditRecords(_ context.Context, limit int) ([]store.AuditRecord, error) {
	return r.audits, nil
}

func (r *fakeRepo) GetAuditRecordsForTarget(context.Context, uuid.UUID, int) ([]store.AuditRecord, error) {
	return nil, nil
}

// fakeRunner returns scripted results in call order; calls past the script succeed.
type fakeRunner struct {
	specs   []cluster.JobSpec
	results []jobrunner.Result

	// onRun lets a test mimic the backend's side effects of a job.
	onRun func(spec cluster.JobSpec)
}

func (r *fakeRunner) Run(_ context.Context, spec cluster.JobSpec) jobrunner.Result {
	r.specs = append(r.specs, spec)
	if r.onRun != nil {
		r.onRun(spec)
	}
	i := len(r.specs) - 1
	res := jobrunner.Result{Success: true, Logs: "{}\nHTTP_CODE:200", Duration: 6 * time.Second}
	if i < len(r.results) {
		res = r.results[i]
	}
	res.JobName = spec.Name
	return res
}

// script returns the shell script of the i-th submitted job.
func (r *fakeRunner) script(i int) string {
	return r.specs[i].Command[2]
}

func jobFailed(reason string) jobrunner.Result {
	return jobrunner.Result{Success: false, Logs: "HTTP_CODE:500", FailureReason: reason, Duration: 4 * time.Second}
}

func jobOK() jobrunner.Result {
	return jobrunner.Result{Success: true, Logs: "HTTP_CODE:200", Duration: 6 * time.Second}
}

// scriptedAsker answers prompts in order; running out of answers is an empty line.
type scriptedAsker struct {
	answers []string
	prompts []string
}

func (a *scriptedAsker) Ask(_ context.Context, prompt string) (string, error) {
	a.prompts = append(a.prompts, prompt)
	if len(a.answers) == 0 {
		return "", nil
	}
	next := a.answers[0]
	a.answers = a.answers[1:]
	return next, nil
}

// Fixture identifiers.
var (
	userID      = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	standardID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	unlimitedID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	accountID   = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	orderID     = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	activeID    = uuid.MustParse("66666666-6666-6666-6666-666666666666")
	optionID    = uuid.MustParse("77777777-7777-7777-7777-777777777777")
)

type fixture struct {
	repo   *fakeRepo
	runner *fakeRunner
	asker  *scriptedAsker
	orch   *Orchestrator
	ids    []uuid.UUID
}

// newFixture seeds a user, a standard and an unlimited challenge and one
// option. Confirmations come from answers.
func newFixture(env config.Environment, answers ...string) *fixture {
	f := &fixture{
		repo:   newFakeRepo(),
		runner: &fakeRunner{},
		asker:  &scriptedAsker{answers: answers},
	}

	f.repo.users[userID] = &store.User{
		ID: userID, CTID: sql.NullInt64{Int64: 9001, Valid: true},
		Email: "jane@example.com", Firstname: "Jane", Lastname: "Doe", Valid: true,
	}
	f.repo.challenges[standardID] = &store.Challenge{
		ID: standardID, Name: "Standard 10K", Type: store.ChallengeStandard,
		Price: 99, InitialBalance: 10000, Published: true,
	}
	f.repo.challenges[unlimitedID] = &store.Challenge{
		ID: unlimitedID, Name: "Unlimited 25K", Type: store.ChallengeUnlimited,
		Price: 199, InitialBalance: 25000, Published: true,
	}
	f.repo.rules[standardID] = []store.ChallengeRule{
		{ChallengeID: standardID, Phase: store.PhaseStandardOne, ProfitTargetPercent: 8, MinTradingDays: 4,
			MaxDailyDrawdownPercent: sql.NullFloat64{Float64: 5, Valid: true}},
		{ChallengeID: standardID, Phase: store.PhaseStandardTwo, ProfitTargetPercent: 5, MinTradingDays: 4},
	}
	f.repo.options = []store.Option{{ID: optionID, Name: "Weekend holding", MajorationPercent: 10}}

	var n uint32
	f.orch = New(f.repo, f.runner, &Gate{Asker: f.asker}, Settings{
		Environment: env,
		Operator:    "alice",
		Namespace:   string(env),
	}, WithIDGenerator(func() uuid.UUID {
		n++
		id := uuid.MustParse(fmt.Sprintf("aaaaaaaa-0000-0000-0000-%012d", n))
		f.ids = append(f.ids, id)
		return id
	}))
	return f
}

func (f *fixture) addAccount(ct uuid.UUID, phase store.Phase, success *int64) *store.TradingAccount {
	a := &store.TradingAccount{
		ID:                  accountID,
		OrderID:             orderID,
		ChallengeID:         ct,
		CtraderAccount:      sql.NullInt64{Int64: 4242, Valid: true},
		CtraderServer:       sql.NullString{String: "demo", Valid: true},
		Phase:               phase,
		ProfitTargetPercent: sql.NullFloat64{Float64: 0.08, Valid: true},
	}
	if success != nil {
		a.Success = sql.NullInt64{Int64: *success, Valid: true}
		a.Reason = sql.NullString{String: "MAX_DRAW_DOWN", Valid: true}
	}
	f.repo.accounts[a.ID] = a
	return a
}

func (f *fixture) addActivation() *store.FundedActivation {
	act := &store.FundedActivation{
		ID:               activeID,
		UserID:           userID,
		TradingAccountID: accountID,
		Amount:           149.90,
		Currency:         "eur",
		Status:           "pending",
		CreatedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.repo.activations[accountID] = act
	return act
}

func int64p(v int64) *int64 { return &v }

func float64p(v float64) *float64 { return &v }
