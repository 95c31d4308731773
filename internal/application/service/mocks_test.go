package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/max-programming/expenso/internal/application/dispatcher"
	"github.com/max-programming/expenso/internal/application/port"
	"github.com/max-programming/expenso/internal/domain/approval"
	"github.com/max-programming/expenso/internal/domain/entity"
	"github.com/max-programming/expenso/internal/domain/event"
)

// memStore is an in-memory implementation of the repository ports. Its
// WithTransaction serializes callers and rolls back on error.
type memStore struct {
	txMu sync.Mutex

	mu        sync.Mutex
	rules     map[string]*entity.ApprovalRule
	approvals map[string]*entity.ExpenseApproval
	expenses  map[string]*entity.Expense

	listErr error
}

func newMemStore() *memStore {
	return &memStore{
		rules:     map[string]*entity.ApprovalRule{},
		approvals: map[string]*entity.ExpenseApproval{},
		expenses:  map[string]*entity.Expense{},
	}
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	approvals := make(map[string]entity.ExpenseApproval, len(m.approvals))
	for id, a := range m.approvals {
		approvals[id] = *a
	}
	expenses := make(map[string]entity.Expense, len(m.expenses))
	for id, e := range m.expenses {
		expenses[id] = *e
	}
	rules := make(map[string]*entity.ApprovalRule, len(m.rules))
	for id, r := range m.rules {
		rules[id] = r
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.approvals = map[string]*entity.ExpenseApproval{}
		for id, a := range approvals {
			a := a
			m.approvals[id] = &a
		}
		m.expenses = map[string]*entity.Expense{}
		for id, e := range expenses {
			e := e
			m.expenses[id] = &e
		}
		m.rules = rules
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) ruleRepo() port.RuleRepository         { return (*memRules)(m) }
func (m *memStore) approvalRepo() port.ApprovalRepository { return (*memApprovals)(m) }
func (m *memStore) expenseRepo() port.ExpenseRepository   { return (*memExpenses)(m) }

func (m *memStore) putRule(r *entity.ApprovalRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = cloneRule(r)
}

func (m *memStore) putExpense(e *entity.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.expenses[e.ID] = &cp
}

func (m *memStore) putApproval(a *entity.ExpenseApproval) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.approvals[a.ID] = &cp
}

func (m *memStore) approval(id string) entity.ExpenseApproval {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.approvals[id]
}

func (m *memStore) expense(id string) entity.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.expenses[id]
}

func cloneRule(r *entity.ApprovalRule) *entity.ApprovalRule {
	cp := *r
	cp.Steps = append([]entity.ApprovalStep(nil), r.Steps...)
	return &cp
}

type memRules memStore

func (r *memRules) Create(_ context.Context, rule *entity.ApprovalRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (r *memRules) GetByID(_ context.Context, id string) (*entity.ApprovalRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	return cloneRule(rule), nil
}

func (r *memRules) ListByCompany(_ context.Context, companyID string) ([]*entity.ApprovalRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ApprovalRule
	for _, rule := range r.rules {
		if rule.CompanyID == companyID {
			out = append(out, cloneRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRules) Update(_ context.Context, rule *entity.ApprovalRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return approval.ErrNotFound
	}
	r.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (r *memRules) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, id)
	return nil
}

func (r *memRules) CountPendingUsage(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.approvals {
		if a.ApprovalRuleID != nil && *a.ApprovalRuleID == id && a.IsPending() {
			n++
		}
	}
	return n, nil
}

type memApprovals memStore

func (r *memApprovals) CreateBatch(_ context.Context, rows []*entity.ExpenseApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		cp := *row
		r.approvals[row.ID] = &cp
	}
	return nil
}

func (r *memApprovals) GetPendingForApprover(_ context.Context, id, approverID string) (*entity.ExpenseApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.approvals[id]
	if !ok || a.ApproverID != approverID || !a.IsPending() {
		return nil, approval.ErrNotFoundOrAlreadyProcessed
	}
	cp := *a
	return &cp, nil
}

func (r *memApprovals) MarkAction(_ context.Context, rec port.ApprovalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.approvals[rec.ID]
	if !ok || a.ApproverID != rec.ApproverID || !a.IsPending() {
		return approval.ErrNotFoundOrAlreadyProcessed
	}
	at := rec.ActionAt
	a.Action = rec.Action
	a.Comments = rec.Comments
	a.ActionAt = &at
	return nil
}

func (r *memApprovals) ListByExpense(_ context.Context, expenseID string) ([]*entity.ExpenseApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.sorted(func(a *entity.ExpenseApproval) bool { return a.ExpenseID == expenseID }), nil
}

func (r *memApprovals) ListPendingByApprover(_ context.Context, approverID string) ([]*entity.ExpenseApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a *entity.ExpenseApproval) bool {
		e, ok := r.expenses[a.ExpenseID]
		return a.ApproverID == approverID && a.IsPending() && ok && e.IsPending()
	}), nil
}

func (r *memApprovals) sorted(keep func(*entity.ExpenseApproval) bool) []*entity.ExpenseApproval {
	var out []*entity.ExpenseApproval
	for _, a := range r.approvals {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	order := func(a *entity.ExpenseApproval) int {
		if a.StepOrder == nil {
			return 1 << 30
		}
		return *a.StepOrder
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpenseID != out[j].ExpenseID {
			return out[i].ExpenseID < out[j].ExpenseID
		}
		if order(out[i]) != order(out[j]) {
			return order(out[i]) < order(out[j])
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memExpenses memStore

func (r *memExpenses) Create(_ context.Context, e *entity.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.expenses[e.ID] = &cp
	return nil
}

func (r *memExpenses) List(_ context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Expense
	for _, e := range r.expenses {
		if filter.CompanyID != "" && e.CompanyID != filter.CompanyID {
			continue
		}
		if filter.EmployeeID != "" && e.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memExpenses) GetByID(_ context.Context, id string) (*entity.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memExpenses) UpdateStatus(_ context.Context, id string, from, to entity.ExpenseStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok || e.Status != from {
		return approval.ErrNotFoundOrAlreadyProcessed
	}
	e.Status = to
	return nil
}

func (r *memExpenses) MarkSubmitted(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok || e.Status != entity.ExpenseStatusDraft {
		return approval.ErrNotFoundOrAlreadyProcessed
	}
	e.Status = entity.ExpenseStatusPending
	e.SubmittedAt = &at
	return nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type recordingMetrics struct {
	mu          sync.Mutex
	decisions   map[string]int
	conflicts   int
	submissions []string
}

func (m *recordingMetrics) ObserveDecision(action entity.ApprovalAction, outcome entity.ExpenseStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decisions == nil {
		m.decisions = map[string]int{}
	}
	m.decisions[string(action)+"/"+string(outcome)]++
}

func (m *recordingMetrics) ObserveConflict(entity.ApprovalAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) ObserveSubmission(ruleType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, ruleType)
}

// eventLog records every event published through a real dispatcher
type eventLog struct {
	mu     sync.Mutex
	events []*event.Event
}

func newEventLog(d dispatcher.Dispatcher) *eventLog {
	l := &eventLog{}
	for _, t := range []event.Type{
		event.TypeExpenseSubmitted,
		event.TypeApprovalRecorded,
		event.TypeExpenseApproved,
		event.TypeExpenseRejected,
	} {
		d.Subscribe(t, func(_ context.Context, evt *event.Event) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, evt)
			return nil
		})
	}
	return l
}

func (l *eventLog) types() []event.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Type, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) all() []*event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*event.Event(nil), l.events...)
}

var errStorage = errors.New("storage unavailable")
