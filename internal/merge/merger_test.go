package merge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rpattn/tidyjoin/internal/domain"
)

func TestMergeExampleScenario(t *testing.T) {
	mortality := []domain.TidyRecord{
		{EntityCode: "USA", Year: 2000, Value: 8.5},
		{EntityCode: "USA", Year: 2001, Value: 8.2},
		{EntityCode: "CAN", Year: 2000, Value: 6.1},
	}
	gdp := []domain.TidyRecord{
		{EntityCode: "USA", Year: 2000, Value: 36000},
		{EntityCode: "USA", Year: 2001, Value: 37000},
		{EntityCode: "CAN", Year: 2000, Value: 24000},
		{EntityCode: "CAN", Year: 2001, Value: 25000},
	}

	result, err := NewMerger().Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	want := []domain.MergedRecord{
		{EntityCode: "CAN", DisplayName: "Canada", MortalityRate: 6.1, GDPPerCapita: 24000, Year: 2000},
		{EntityCode: "USA", DisplayName: "United States", MortalityRate: 8.5, GDPPerCapita: 36000, Year: 2000},
		{EntityCode: "USA", DisplayName: "United States", MortalityRate: 8.2, GDPPerCapita: 37000, Year: 2001},
	}
	if diff := cmp.Diff(want, result.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	s := result.Summary
	if s.Matched != 3 || s.MortalityOnly != 0 || s.GDPOnly != 1 || s.Emitted != 3 || s.EmptyJoin {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestMergeSoundAndComplete(t *testing.T) {
	var mortality, gdp []domain.TidyRecord
	codes := []string{"AUS", "BRA", "CHN", "DEU", "ESP", "FRA"}
	for ci, code := range codes {
		for year := 1998; year <= 2012; year++ {
			if (ci+year)%3 != 0 {
				mortality = append(mortality, domain.TidyRecord{EntityCode: code, Year: year, Value: float64(ci*1000 + year)})
			}
			if (ci*year)%5 != 1 {
				gdp = append(gdp, domain.TidyRecord{EntityCode: code, Year: year, Value: float64(-ci*1000 - year)})
			}
		}
	}
	// reverse one side so output order cannot come from input order
	for i, j := 0, len(gdp)-1; i < j; i, j = i+1, j-1 {
		gdp[i], gdp[j] = gdp[j], gdp[i]
	}

	result, err := NewMerger().Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	mortalityByKey := make(map[domain.RecordKey]float64)
	for _, r := range mortality {
		mortalityByKey[r.Key()] = r.Value
	}
	gdpByKey := make(map[domain.RecordKey]float64)
	for _, r := range gdp {
		gdpByKey[r.Key()] = r.Value
	}
	expected := 0
	for key := range mortalityByKey {
		if _, ok := gdpByKey[key]; ok {
			expected++
		}
	}

	if len(result.Records) != expected {
		t.Fatalf("expected %d rows, got %d", expected, len(result.Records))
	}
	for i, record := range result.Records {
		m, inMortality := mortalityByKey[record.Key()]
		g, inGDP := gdpByKey[record.Key()]
		if !inMortality || !inGDP {
			t.Fatalf("row %d key %v not in both inputs", i, record.Key())
		}
		if record.MortalityRate != m || record.GDPPerCapita != g {
			t.Fatalf("row %d values do not come from inputs: %+v", i, record)
		}
		if i > 0 {
			prev := result.Records[i-1]
			if prev.EntityCode > record.EntityCode || (prev.EntityCode == record.EntityCode && prev.Year >= record.Year) {
				t.Fatalf("rows not sorted at %d", i)
			}
		}
	}
	s := result.Summary
	if s.Matched+s.MortalityOnly != len(mortality) || s.Matched+s.GDPOnly != len(gdp) {
		t.Fatalf("cardinalities do not add up: %+v", s)
	}
}

func TestMergeNameResolutionOrder(t *testing.T) {
	mortality := []domain.TidyRecord{
		{EntityCode: "USA", Year: 2000, Value: 1, DisplayName: "USA from mortality"},
		{EntityCode: "CAN", Year: 2000, Value: 2},
		{EntityCode: "MEX", Year: 2000, Value: 3},
	}
	gdp := []domain.TidyRecord{
		{EntityCode: "USA", Year: 2000, Value: 10, DisplayName: "USA from gdp"},
		{EntityCode: "CAN", Year: 2000, Value: 20, DisplayName: "Canada from gdp"},
		{EntityCode: "MEX", Year: 2000, Value: 30},
	}
	result, err := NewMerger().Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := map[string]string{}
	for _, r := range result.Records {
		got[r.EntityCode] = r.DisplayName
	}
	want := map[string]string{"USA": "USA from mortality", "CAN": "Canada from gdp", "MEX": "Mexico"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeUnresolvedNamePolicies(t *testing.T) {
	mortality := []domain.TidyRecord{
		{EntityCode: "USA", Year: 2000, Value: 1},
		{EntityCode: "XKX", Year: 2000, Value: 2},
		{EntityCode: "XKX", Year: 2001, Value: 3},
	}
	gdp := []domain.TidyRecord{
		{EntityCode: "USA", Year: 2000, Value: 10},
		{EntityCode: "XKX", Year: 2000, Value: 20},
		{EntityCode: "XKX", Year: 2001, Value: 30},
	}

	excluded, err := NewMerger().Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(excluded.Records) != 1 || excluded.Records[0].EntityCode != "USA" {
		t.Fatalf("expected only USA to survive, got %+v", excluded.Records)
	}
	if excluded.Summary.Excluded != 2 || len(excluded.Summary.Unnamed) != 1 || excluded.Summary.Unnamed[0] != "XKX" {
		t.Fatalf("unexpected summary: %+v", excluded.Summary)
	}

	blank, err := NewMerger(WithUnresolvedNamePolicy(UnresolvedBlank)).Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(blank.Records) != 3 || blank.Records[1].DisplayName != "" {
		t.Fatalf("expected blank names to be kept, got %+v", blank.Records)
	}

	custom, err := NewMerger(WithNames(StaticNames{"XKX": "Kosovo"})).Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(custom.Records) != 2 || custom.Records[0].DisplayName != "Kosovo" {
		t.Fatalf("expected custom lookup to replace defaults, got %+v", custom.Records)
	}
}

func TestMergeFlagsEmptyJoin(t *testing.T) {
	mortality := []domain.TidyRecord{{EntityCode: "USA", Year: 2000, Value: 8.5}}
	gdp := []domain.TidyRecord{{EntityCode: "usa", Year: 2000, Value: 36000, DisplayName: "United States"}}

	result, err := NewMerger().Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(result.Records) != 0 || !result.Summary.EmptyJoin {
		t.Fatalf("expected flagged empty join, got %+v", result)
	}
	if overlap := CaseFoldOverlap(mortality, gdp); overlap != 1 {
		t.Fatalf("expected case-fold overlap of 1, got %d", overlap)
	}

	empty, err := NewMerger().Merge(nil, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if empty.Summary.EmptyJoin {
		t.Fatalf("an empty input is not an anomaly")
	}
}

func TestMergeRejectsDuplicateKeys(t *testing.T) {
	dup := []domain.TidyRecord{
		{EntityCode: "USA", Year: 2000, Value: 1},
		{EntityCode: "USA", Year: 2000, Value: 2},
	}
	single := []domain.TidyRecord{{EntityCode: "USA", Year: 2000, Value: 3}}

	for name, inputs := range map[string][2][]domain.TidyRecord{
		"mortality": {dup, single},
		"gdp":       {single, dup},
	} {
		_, err := NewMerger().Merge(inputs[0], inputs[1])
		if !errors.Is(err, domain.ErrDuplicateKey) {
			t.Fatalf("%s: expected duplicate key error, got %v", name, err)
		}
	}
}

func TestStaticNamesResolve(t *testing.T) {
	names := DefaultNames()
	for _, code := range []string{"ZAF", "zaf"} {
		if name, ok := names.Resolve(code); !ok || name != "South Africa" {
			t.Fatalf("Resolve(%q) = %q, %v", code, name, ok)
		}
	}
	if _, ok := names.Resolve("ATA"); ok {
		t.Fatalf("did not expect ATA to resolve")
	}
}

func TestParseUnresolvedNamePolicy(t *testing.T) {
	for raw, want := range map[string]UnresolvedNamePolicy{"": UnresolvedExclude, "BLANK": UnresolvedBlank} {
		got, err := ParseUnresolvedNamePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParseUnresolvedNamePolicy(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseUnresolvedNamePolicy("invent"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMergeFlagsEmptyJoinWhenEveryMatchIsExcluded(t *testing.T) {
	mortality := []domain.TidyRecord{{EntityCode: "XXX", Year: 2000, Value: 8.5}}
	gdp := []domain.TidyRecord{{EntityCode: "XXX", Year: 2000, Value: 36000}}

	result, err := NewMerger().Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	s := result.Summary
	if !s.EmptyJoin || s.Matched != 1 || s.Excluded != 1 || s.Emitted != 0 {
		t.Fatalf("expected flagged empty join, got %+v", s)
	}

	kept, err := NewMerger(WithUnresolvedNamePolicy(UnresolvedBlank)).Merge(mortality, gdp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if kept.Summary.EmptyJoin || kept.Summary.Emitted != 1 {
		t.Fatalf("blank policy should keep the row, got %+v", kept.Summary)
	}
}
