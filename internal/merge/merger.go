// Package merge inner-joins the tidy mortality and GDP tables.
package merge

import (
	"fmt"
	"strings"

	"github.com/rpattn/tidyjoin/internal/domain"
)

// UnresolvedNamePolicy decides what happens to a joined row with no display name.
type UnresolvedNamePolicy string

const (
	UnresolvedExclude UnresolvedNamePolicy = "exclude"
	UnresolvedBlank   UnresolvedNamePolicy = "blank"
)

// ParseUnresolvedNamePolicy validates a configured policy. Empty means exclude.
func ParseUnresolvedNamePolicy(raw string) (UnresolvedNamePolicy, error) {
	switch UnresolvedNamePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", UnresolvedExclude:
		return UnresolvedExclude, nil
	case UnresolvedBlank:
		return UnresolvedBlank, nil
	default:
		return "", fmt.Errorf("unknown unresolved name policy %q", raw)
	}
}

// Result is the output of a single Merge call.
type Result struct {
	Records []domain.MergedRecord
	Summary domain.MergeSummary
}

// Merger joins tidy tables on (entity code, year).
type Merger struct {
	names      NameResolver
	unresolved UnresolvedNamePolicy
}

// Option customizes a Merger.
type Option func(*Merger)

// WithNames replaces the static display name lookup.
func WithNames(names NameResolver) Option {
	return func(m *Merger) {
		if names != nil {
			m.names = names
		}
	}
}

// WithUnresolvedNamePolicy sets the policy for rows whose name cannot be resolved.
func WithUnresolvedNamePolicy(policy UnresolvedNamePolicy) Option {
	return func(m *Merger) {
		if policy != "" {
			m.unresolved = policy
		}
	}
}

// NewMerger constructs a merger with the default name table and exclude policy.
func NewMerger(opts ...Option) *Merger {
	merger := &Merger{
		names:      DefaultNames(),
		unresolved: UnresolvedExclude,
	}
	for _, opt := range opts {
		opt(merger)
	}
	return merger
}

// Merge performs an exact-key inner join. Keys are compared as given: inputs must
// already share a canonicalization. A merge that emits nothing from non-empty
// inputs, whether no key matched or every match was excluded, is flagged in the
// summary rather than returned as an error.
func (m *Merger) Merge(mortality, gdp []domain.TidyRecord) (Result, error) {
	summary := domain.MergeSummary{
		MortalityRows: len(mortality),
		GDPRows:       len(gdp),
		Unnamed:       []string{},
	}

	gdpIndex, err := indexByKey(gdp, "gdp")
	if err != nil {
		return Result{Summary: summary}, err
	}
	if _, err := indexByKey(mortality, "mortality"); err != nil {
		return Result{Summary: summary}, err
	}

	records := make([]domain.MergedRecord, 0, min(len(mortality), len(gdp)))
	matchedGDP := make(map[domain.RecordKey]struct{}, len(gdp))
	unnamed := make(map[string]struct{})
	entities := make(map[string]struct{})

	for _, left := range mortality {
		idx, ok := gdpIndex[left.Key()]
		if !ok {
			summary.MortalityOnly++
			continue
		}
		right := gdp[idx]
		summary.Matched++
		matchedGDP[left.Key()] = struct{}{}

		name, resolved := m.resolveName(left, right)
		if !resolved {
			if _, noted := unnamed[left.EntityCode]; !noted {
				unnamed[left.EntityCode] = struct{}{}
				summary.Unnamed = append(summary.Unnamed, left.EntityCode)
			}
			if m.unresolved == UnresolvedExclude {
				summary.Excluded++
				continue
			}
		}

		entities[left.EntityCode] = struct{}{}
		summary.Years.Observe(left.Year, len(records) == 0)
		records = append(records, domain.MergedRecord{
			EntityCode:    left.EntityCode,
			DisplayName:   name,
			MortalityRate: left.Value,
			GDPPerCapita:  right.Value,
			Year:          left.Year,
		})
	}

	summary.GDPOnly = len(gdp) - len(matchedGDP)
	domain.SortMergedRecords(records)
	summary.Emitted = len(records)
	summary.Entities = len(entities)
	summary.EmptyJoin = len(mortality) > 0 && len(gdp) > 0 && summary.Emitted == 0
	return Result{Records: records, Summary: summary}, nil
}

func (m *Merger) resolveName(left, right domain.TidyRecord) (string, bool) {
	if name := strings.TrimSpace(left.DisplayName); name != "" {
		return name, true
	}
	if name := strings.TrimSpace(right.DisplayName); name != "" {
		return name, true
	}
	if m.names != nil {
		if name, ok := m.names.Resolve(left.EntityCode); ok {
			return name, true
		}
	}
	return "", false
}

func indexByKey(records []domain.TidyRecord, label string) (map[domain.RecordKey]int, error) {
	index := make(map[domain.RecordKey]int, len(records))
	for idx, record := range records {
		key := record.Key()
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("%w: %s input has %s/%d more than once", domain.ErrDuplicateKey, label, key.EntityCode, key.Year)
		}
		index[key] = idx
	}
	return index, nil
}

// CaseFoldOverlap counts keys that match only when entity codes are compared
// without regard to case. A non-zero count on an empty join points at tidiers
// configured with different case conventions.
func CaseFoldOverlap(mortality, gdp []domain.TidyRecord) int {
	exact := make(map[domain.RecordKey]struct{}, len(gdp))
	folded := make(map[domain.RecordKey]struct{}, len(gdp))
	for _, record := range gdp {
		exact[record.Key()] = struct{}{}
		folded[domain.RecordKey{EntityCode: strings.ToUpper(record.EntityCode), Year: record.Year}] = struct{}{}
	}
	overlap := 0
	for _, record := range mortality {
		if _, ok := exact[record.Key()]; ok {
			continue
		}
		if _, ok := folded[domain.RecordKey{EntityCode: strings.ToUpper(record.EntityCode), Year: record.Year}]; ok {
			overlap++
		}
	}
	return overlap
}
