// Package mongoadapter persists Casbin policy rules in a document store.
// It implements the casbin persist adapter interfaces over a narrow store
// abstraction with MongoDB and in-memory backends.
//
// Two contract points are inherited from the stored-rule model and worth
// calling out: RemoveFilteredPolicy deletes at most one matching record per
// call, and SavePolicy clears the collection before re-inserting, with no
// atomicity spanning the two steps. Callers needing delete-all or an atomic
// full replace must coordinate externally.
package mongoadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"

	"github.com/polstore/mongoadapter/rule"
	"github.com/polstore/mongoadapter/store"
)

// Compile-time interface checks.
var (
	_ persist.Adapter             = (*Adapter)(nil)
	_ persist.BatchAdapter        = (*Adapter)(nil)
	_ persist.FilteredAdapter     = (*Adapter)(nil)
	_ persist.UpdatableAdapter    = (*Adapter)(nil)
	_ persist.ContextAdapter      = (*Adapter)(nil)
	_ persist.ContextBatchAdapter = (*Adapter)(nil)
)

// Adapter stores and retrieves Casbin policy rules through a rule store.
// It holds no mutable state between calls apart from the filtered-load
// flag, so one instance can be shared across goroutines; consistency under
// concurrent writes is delegated to the store's per-operation atomicity.
type Adapter struct {
	store    store.Store
	logger   *slog.Logger
	filtered atomic.Bool
}

// New creates an Adapter with the given options. A store is required.
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.store == nil {
		return nil, ErrStoreRequired
	}
	return a, nil
}

// Store returns the underlying rule store.
func (a *Adapter) Store() store.Store { return a.store }

// LoadPolicy loads all policy rules from the store into the model.
// Byte-identical stored records collapse to a single tuple.
func (a *Adapter) LoadPolicy(m model.Model) error {
	return a.LoadPolicyCtx(context.Background(), m)
}

// LoadPolicyCtx is LoadPolicy with a caller-supplied context.
func (a *Adapter) LoadPolicyCtx(ctx context.Context, m model.Model) error {
	rules, err := a.store.FindAll(ctx)
	if err != nil {
		return err
	}
	if err := mergeRules(m, rules); err != nil {
		return err
	}
	a.filtered.Store(false)
	return nil
}

// LoadFilteredPolicy loads only the rules matching the filter. A nil
// filter is equivalent to LoadPolicy.
func (a *Adapter) LoadFilteredPolicy(m model.Model, filter interface{}) error {
	if filter == nil {
		return a.LoadPolicy(m)
	}
	var f Filter
	switch v := filter.(type) {
	case Filter:
		f = v
	case *Filter:
		if v == nil {
			return a.LoadPolicy(m)
		}
		f = *v
	default:
		return fmt.Errorf("%w: %T", ErrInvalidFilter, filter)
	}
	rules, err := a.store.Find(context.Background(), f.ruleFilters())
	if err != nil {
		return err
	}
	if err := mergeRules(m, rules); err != nil {
		return err
	}
	a.filtered.Store(true)
	return nil
}

// IsFiltered reports whether the last load was filtered.
func (a *Adapter) IsFiltered() bool { return a.filtered.Load() }

// mergeRules de-duplicates records by full-field equality, converts each
// survivor to its policy tuple and appends it to the model's assertion,
// keeping the string-keyed index the engine uses for existence checks in
// sync. One pass, one model write per tuple, insertion order preserved
// within each type.
func mergeRules(m model.Model, rules []rule.Rule) error {
	seen := make(map[rule.Rule]struct{}, len(rules))
	for _, r := range rules {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		if r.PType == "" {
			return fmt.Errorf("%w: empty ptype", ErrMalformedRule)
		}
		sec := r.PType[:1]
		ast, ok := m[sec][r.PType]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPolicyType, r.PType)
		}
		tuple := r.Fields()
		ast.Policy = append(ast.Policy, tuple)
		if ast.PolicyMap == nil {
			ast.PolicyMap = make(map[string]int)
		}
		ast.PolicyMap[strings.Join(tuple, model.DefaultSep)] = len(ast.Policy) - 1
	}
	return nil
}

// SavePolicy replaces the store's content with the model's rules: it drops
// the collection, then bulk-inserts one record per tuple. The two steps
// are not atomic; a failure in between leaves the store empty or partially
// populated. Duplicate tuples are written as-is and collapse on reload.
func (a *Adapter) SavePolicy(m model.Model) error {
	return a.SavePolicyCtx(context.Background(), m)
}

// SavePolicyCtx is SavePolicy with a caller-supplied context.
func (a *Adapter) SavePolicyCtx(ctx context.Context, m model.Model) error {
	if err := a.store.Drop(ctx); err != nil {
		return err
	}
	var rules []rule.Rule
	for _, sec := range []string{"p", "g"} {
		ptypes := make([]string, 0, len(m[sec]))
		for ptype := range m[sec] {
			ptypes = append(ptypes, ptype)
		}
		sort.Strings(ptypes)
		for _, ptype := range ptypes {
			for _, tuple := range m[sec][ptype].Policy {
				r, err := rule.New(ptype, tuple)
				if err != nil {
					a.logRuleSkipped(ptype, tuple, err)
					continue
				}
				rules = append(rules, r)
			}
		}
	}
	if len(rules) == 0 {
		return nil
	}
	return a.store.InsertMany(ctx, rules)
}

// AddPolicy persists a single policy rule. A tuple the codec rejects is
// logged and skipped without signalling failure to the caller.
func (a *Adapter) AddPolicy(sec string, ptype string, tuple []string) error {
	return a.AddPolicyCtx(context.Background(), sec, ptype, tuple)
}

// AddPolicyCtx is AddPolicy with a caller-supplied context.
func (a *Adapter) AddPolicyCtx(ctx context.Context, _ string, ptype string, tuple []string) error {
	r, err := rule.New(ptype, tuple)
	if err != nil {
		a.logRuleSkipped(ptype, tuple, err)
		return nil
	}
	return a.store.InsertOne(ctx, r)
}

// AddPolicies persists the valid tuples in one bulk insert. Tuples the
// codec rejects are logged and dropped; if none survive, no store call is
// made.
func (a *Adapter) AddPolicies(sec string, ptype string, tuples [][]string) error {
	return a.AddPoliciesCtx(context.Background(), sec, ptype, tuples)
}

// AddPoliciesCtx is AddPolicies with a caller-supplied context.
func (a *Adapter) AddPoliciesCtx(ctx context.Context, _ string, ptype string, tuples [][]string) error {
	rules := make([]rule.Rule, 0, len(tuples))
	for _, tuple := range tuples {
		r, err := rule.New(ptype, tuple)
		if err != nil {
			a.logRuleSkipped(ptype, tuple, err)
			continue
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return nil
	}
	return a.store.InsertMany(ctx, rules)
}

// RemovePolicy removes at most one record matching the tuple. An empty
// tuple is a no-op: nothing to match means nothing should be deleted.
func (a *Adapter) RemovePolicy(sec string, ptype string, tuple []string) error {
	return a.RemovePolicyCtx(context.Background(), sec, ptype, tuple)
}

// RemovePolicyCtx is RemovePolicy with a caller-supplied context.
func (a *Adapter) RemovePolicyCtx(ctx context.Context, sec string, ptype string, tuple []string) error {
	if len(tuple) == 0 {
		return nil
	}
	return a.RemoveFilteredPolicyCtx(ctx, sec, ptype, 0, tuple...)
}

// RemoveFilteredPolicy removes at most one record whose ptype matches and
// whose slots equal every non-blank field value, starting at fieldIndex.
// Blank values act as wildcards. Callers needing delete-all-matching must
// call repeatedly or use RemovePolicies.
func (a *Adapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	return a.RemoveFilteredPolicyCtx(context.Background(), sec, ptype, fieldIndex, fieldValues...)
}

// RemoveFilteredPolicyCtx is RemoveFilteredPolicy with a caller-supplied
// context.
func (a *Adapter) RemoveFilteredPolicyCtx(ctx context.Context, _ string, ptype string, fieldIndex int, fieldValues ...string) error {
	if len(fieldValues) == 0 {
		return nil
	}
	return a.store.DeleteOne(ctx, rule.Match(ptype, fieldIndex, fieldValues))
}

// RemovePolicies removes at most one record per non-empty tuple, batched
// as a single bulk call. Every non-blank field of a tuple is required to
// match.
func (a *Adapter) RemovePolicies(sec string, ptype string, tuples [][]string) error {
	return a.RemovePoliciesCtx(context.Background(), sec, ptype, tuples)
}

// RemovePoliciesCtx is RemovePolicies with a caller-supplied context.
func (a *Adapter) RemovePoliciesCtx(ctx context.Context, _ string, ptype string, tuples [][]string) error {
	filters := make([]rule.Filter, 0, len(tuples))
	for _, tuple := range tuples {
		if len(tuple) == 0 {
			continue
		}
		filters = append(filters, rule.Match(ptype, 0, tuple))
	}
	if len(filters) == 0 {
		return nil
	}
	return a.store.BulkDeleteOne(ctx, filters)
}

// UpdatePolicy replaces at most one record matching oldTuple with the
// record built from newTuple. A new tuple the codec rejects is logged and
// skipped.
func (a *Adapter) UpdatePolicy(_ string, ptype string, oldTuple, newTuple []string) error {
	ctx := context.Background()
	if len(oldTuple) == 0 {
		return nil
	}
	r, err := rule.New(ptype, newTuple)
	if err != nil {
		a.logRuleSkipped(ptype, newTuple, err)
		return nil
	}
	return a.store.ReplaceOne(ctx, rule.Match(ptype, 0, oldTuple), r)
}

// UpdatePolicies replaces records pairwise, batched as a single bulk call.
// Pairs with an empty old tuple or an invalid new tuple are skipped.
func (a *Adapter) UpdatePolicies(_ string, ptype string, oldTuples, newTuples [][]string) error {
	ctx := context.Background()
	n := len(oldTuples)
	if len(newTuples) < n {
		n = len(newTuples)
	}
	reps := make([]store.Replacement, 0, n)
	for i := 0; i < n; i++ {
		if len(oldTuples[i]) == 0 {
			continue
		}
		r, err := rule.New(ptype, newTuples[i])
		if err != nil {
			a.logRuleSkipped(ptype, newTuples[i], err)
			continue
		}
		reps = append(reps, store.Replacement{
			Filter: rule.Match(ptype, 0, oldTuples[i]),
			Rule:   r,
		})
	}
	if len(reps) == 0 {
		return nil
	}
	return a.store.BulkReplaceOne(ctx, reps)
}

// UpdateFilteredPolicies deletes every record matching the field filter,
// inserts the new tuples, and returns the tuples that were removed.
func (a *Adapter) UpdateFilteredPolicies(_ string, ptype string, newTuples [][]string, fieldIndex int, fieldValues ...string) ([][]string, error) {
	ctx := context.Background()
	match := rule.Match(ptype, fieldIndex, fieldValues)
	old, err := a.store.Find(ctx, []rule.Filter{match})
	if err != nil {
		return nil, err
	}
	if len(old) > 0 {
		filters := make([]rule.Filter, len(old))
		for i, r := range old {
			filters[i] = r.ExactFilter()
		}
		if err := a.store.BulkDeleteOne(ctx, filters); err != nil {
			return nil, err
		}
	}
	rules := make([]rule.Rule, 0, len(newTuples))
	for _, tuple := range newTuples {
		r, err := rule.New(ptype, tuple)
		if err != nil {
			a.logRuleSkipped(ptype, tuple, err)
			continue
		}
		rules = append(rules, r)
	}
	if len(rules) > 0 {
		if err := a.store.InsertMany(ctx, rules); err != nil {
			return nil, err
		}
	}
	oldTuples := make([][]string, len(old))
	for i, r := range old {
		oldTuples[i] = r.Fields()
	}
	return oldTuples, nil
}

func (a *Adapter) logRuleSkipped(ptype string, tuple []string, err error) {
	a.logger.Warn("mongoadapter: skipping rule",
		"ptype", ptype,
		"fields", len(tuple),
		"error", err,
	)
}
