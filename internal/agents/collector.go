package agents

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"finsight/internal/invoker"
	"finsight/pkg/logger"
)

// FinancialSource is the slice of the Fi MCP client the collector needs.
type FinancialSource interface {
	FetchNetWorth(ctx context.Context) (map[string]any, error)
	FetchBankTransactions(ctx context.Context) (map[string]any, error)
	FetchMutualFundTransactions(ctx context.Context) (map[string]any, error)
	FetchEPFDetails(ctx context.Context) (map[string]any, error)
	FetchCreditReport(ctx context.Context) (map[string]any, error)
}

// SourceStatus records the outcome of one data source fetch.
type SourceStatus struct {
	Type         string  `json:"type"`
	Success      bool    `json:"success"`
	RecordCount  int     `json:"record_count"`
	QualityScore float64 `json:"quality_score"`
}

// CollectionResult is the collector's output and the input to every
// downstream analysis phase.
type CollectionResult struct {
	Success          bool           `json:"success"`
	Identity         string         `json:"identity"`
	Data             map[string]any `json:"data"`
	DataSources      []SourceStatus `json:"data_sources"`
	TotalRecords     int            `json:"total_records"`
	DataQualityScore float64        `json:"data_quality_score"`
	Errors           []string       `json:"errors"`
}

// ToMap renders the result in the payload shape the invoker's data
// summary expects.
func (r CollectionResult) ToMap() map[string]any {
	sources := make([]any, 0, len(r.DataSources))
	for _, src := range r.DataSources {
		sources = append(sources, map[string]any{
			"type":          src.Type,
			"success":       src.Success,
			"record_count":  src.RecordCount,
			"quality_score": src.QualityScore,
		})
	}
	return map[string]any{
		"success":            r.Success,
		"identity":           r.Identity,
		"data":               r.Data,
		"data_sources":       sources,
		"total_records":      r.TotalRecords,
		"data_quality_score": r.DataQualityScore,
		"errors":             r.Errors,
	}
}

// Collector gathers financial data from every MCP source and condenses
// it into the metrics the analysis agents work from. The optional
// invoker backs the targeted data-quality assessment.
type Collector struct {
	source FinancialSource
	inv    *invoker.Invoker
	log    *logger.Logger
}

// NewCollector creates a collector over the given data source.
func NewCollector(source FinancialSource, inv *invoker.Invoker) *Collector {
	return &Collector{
		source: source,
		inv:    inv,
		log:    logger.Get().With("agent", AgentCollector),
	}
}

// ID returns the collector's agent identifier.
func (c *Collector) ID() string {
	return AgentCollector
}

type sourceFetch struct {
	name  string
	fetch func(context.Context) (map[string]any, error)
}

// Collect fetches all financial data sources for the identity. The run
// succeeds when at least one source returns data; per-source failures
// are recorded without aborting the rest.
func (c *Collector) Collect(ctx context.Context, identity string) CollectionResult {
	result := CollectionResult{
		Identity: identity,
		Data:     map[string]any{},
		Errors:   []string{},
	}

	fetches := []sourceFetch{
		{"net_worth", c.source.FetchNetWorth},
		{"bank_transactions", c.source.FetchBankTransactions},
		{"mutual_fund_transactions", c.source.FetchMutualFundTransactions},
		{"epf_details", c.source.FetchEPFDetails},
		{"credit_report", c.source.FetchCreditReport},
	}

	successful := 0
	qualityTotal := 0.0
	for _, f := range fetches {
		payload, err := f.fetch(ctx)
		if err != nil {
			c.log.Warnf("Source %s failed: %v", f.name, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.name, err))
			result.DataSources = append(result.DataSources, SourceStatus{Type: f.name, Success: false})
			continue
		}

		records := countRecords(payload)
		quality := sourceQuality(payload, records)

		result.Data[f.name] = payload
		result.DataSources = append(result.DataSources, SourceStatus{
			Type:         f.name,
			Success:      true,
			RecordCount:  records,
			QualityScore: quality,
		})
		result.TotalRecords += records
		qualityTotal += quality
		successful++
	}

	result.Success = successful > 0
	if successful > 0 {
		result.DataQualityScore = qualityTotal / float64(successful)
	}

	c.extractKeyMetrics(&result)

	c.log.Infof("Data collection completed: %d/%d sources successful, quality %.2f",
		successful, len(fetches), result.DataQualityScore)
	return result
}

// AssessDataQuality runs the AI-backed quality assessment over a
// collection result, for the targeted data_quality_assessment pipeline.
func (c *Collector) AssessDataQuality(ctx context.Context, collection CollectionResult) invoker.Result {
	return c.inv.Invoke(ctx, invoker.Request{
		AgentID:      AgentCollector,
		AnalysisType: TypeDataQuality,
		Payload:      collection.ToMap(),
		Instructions: "Assess the completeness, consistency and reliability of the collected financial data. " +
			"Score overall data quality (0.0-1.0), flag missing or stale sources, and state which analyses the gaps affect.",
		System: "You are a data quality analyst for financial data pipelines.",
	})
}

// extractKeyMetrics pulls the headline numbers out of the raw source
// payloads. Monetary values go through decimal arithmetic so string
// amounts from the wire never lose precision to float summing.
func (c *Collector) extractKeyMetrics(result *CollectionResult) {
	if nw, ok := result.Data["net_worth"].(map[string]any); ok {
		if resp, ok := nw["netWorthResponse"].(map[string]any); ok {
			if v, ok := decimalValue(resp["totalNetWorthValue"]); ok {
				result.Data["total_net_worth"], _ = v.Float64()
			}
			assets, liabilities := sumAssetValues(resp)
			if !assets.IsZero() {
				result.Data["total_assets"], _ = assets.Float64()
			}
			if !liabilities.IsZero() {
				result.Data["total_liabilities"], _ = liabilities.Float64()
			}
		}
	}

	if cr, ok := result.Data["credit_report"].(map[string]any); ok {
		if score, ok := findNumber(cr, "score", "creditScore", "bureauScore"); ok {
			result.Data["credit_score"] = score
		}
	}

	if epf, ok := result.Data["epf_details"].(map[string]any); ok {
		if balance, ok := findNumber(epf, "current_pf_balance", "currentBalance", "epf_balance"); ok {
			result.Data["epf_balance"] = balance
		}
	}

	txnCount := 0
	for _, key := range []string{"bank_transactions", "mutual_fund_transactions"} {
		if payload, ok := result.Data[key].(map[string]any); ok {
			txnCount += countRecords(payload)
		}
	}
	if txnCount > 0 {
		result.Data["transaction_count"] = txnCount
	}
}

// sumAssetValues totals assetValues and liabilityValues entries from a
// net worth response using decimal arithmetic.
func sumAssetValues(resp map[string]any) (assets, liabilities decimal.Decimal) {
	sum := func(key string) decimal.Decimal {
		total := decimal.Zero
		entries, ok := resp[key].([]any)
		if !ok {
			return total
		}
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := decimalValue(entry["value"]); ok {
				total = total.Add(v)
			}
		}
		return total
	}
	return sum("assetValues"), sum("liabilityValues")
}

// decimalValue converts the value shapes the MCP server uses: plain
// numbers, numeric strings, or {"units": "...", "nanos": n} objects.
func decimalValue(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		d, err := decimal.NewFromString(val)
		return d, err == nil
	case map[string]any:
		units, ok := val["units"]
		if !ok {
			return decimal.Zero, false
		}
		d, ok := decimalValue(units)
		if !ok {
			return decimal.Zero, false
		}
		if nanos, isNum := val["nanos"].(float64); isNum {
			d = d.Add(decimal.NewFromFloat(nanos).Div(decimal.NewFromInt(1_000_000_000)))
		}
		return d, true
	}
	return decimal.Zero, false
}

// findNumber searches the payload (one level of nesting deep) for the
// first of the given keys holding a numeric value.
func findNumber(payload map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := payload[key].(float64); ok {
			return v, true
		}
	}
	for _, nested := range payload {
		m, ok := nested.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			if v, ok := m[key].(float64); ok {
				return v, true
			}
			if s, ok := m[key].(string); ok {
				if d, err := decimal.NewFromString(s); err == nil {
					f, _ := d.Float64()
					return f, true
				}
			}
		}
	}
	return 0, false
}

// countRecords counts list entries anywhere at the payload's top level.
func countRecords(payload map[string]any) int {
	count := 0
	for _, v := range payload {
		if list, ok := v.([]any); ok {
			count += len(list)
		}
	}
	return count
}

// sourceQuality scores a fetched payload: populated sources with record
// lists score highest, empty payloads lowest.
func sourceQuality(payload map[string]any, records int) float64 {
	switch {
	case len(payload) == 0:
		return 0.3
	case records > 0:
		return 1.0
	default:
		return 0.7
	}
}
