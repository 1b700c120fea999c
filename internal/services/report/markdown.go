package report

import (
	"fmt"
	"strings"
)

// Markdown renders the dashboard as a sectioned Markdown document
func Markdown(d *Dashboard) string {
	var b mdBuilder

	b.heading(1, d.Title)
	b.para(fmt.Sprintf("**Domain:** %s  \n**Location:** %s", d.Domain, d.Location))

	b.heading(2, "Business Overview")
	b.field("History", d.History)
	b.field("Mission", d.Mission)
	b.list("Core Values", d.CoreValues)

	b.heading(2, "Products and Services")
	rows := make([][]string, 0, len(d.Products))
	for i, p := range d.Products {
		share := ""
		if i < len(d.RevenueShare) {
			share = d.RevenueShare[i].Raw
		}
		rows = append(rows, []string{p.Title, p.Text, share})
	}
	b.table([]string{"Product or Service", "Description", "Revenue Share"}, rows)

	b.heading(2, "Organization")
	b.para(d.Organization)
	b.pairTable("Leader", "Position", d.Leadership)

	b.heading(2, "Financial Health")
	b.para(d.FinancialSummary)
	metrics := make([][]string, 0, len(d.FinancialMetrics))
	for _, m := range d.FinancialMetrics {
		metrics = append(metrics, []string{m.Label, m.Raw})
	}
	b.table([]string{"Metric", "Value"}, metrics)

	b.heading(2, "Regional Analysis")
	b.heading(3, "Industry Trends")
	b.pairTable("Trend", "Impact", d.IndustryTrends)
	b.heading(3, "Competitors")
	for _, c := range d.Competitors {
		b.heading(4, c.Name)
		b.list("Strengths", c.Strengths)
		b.list("Weaknesses", c.Weaknesses)
	}
	b.heading(3, "Market Position")
	b.field("Market Share", d.MarketShare)
	b.field("Positioning", d.Positioning)

	b.heading(2, "SWOT Analysis")
	b.list("Strengths", d.Swot.Strengths)
	b.list("Weaknesses", d.Swot.Weaknesses)
	b.list("Opportunities", d.Swot.Opportunities)
	b.list("Threats", d.Swot.Threats)

	b.heading(2, "Opportunity Analysis")
	b.pairs("Growth Areas", d.GrowthAreas)
	b.pairs("Product and Service Expansions", d.Expansions)
	b.pairs("Potential Partnerships", d.Partnerships)
	b.pairs("Technological Opportunities", d.Technology)

	b.heading(2, "Customer Base Analysis")
	b.pairs("Demographics", d.Demographics)
	b.pairs("Psychographics", d.Psychographics)
	b.field("Retention Rate", d.RetentionRate)
	b.list("Loyalty Programs", d.LoyaltyPrograms)
	b.pairs("Underserved Segments", d.UnderservedGroups)
	b.field("Satisfaction", d.Satisfaction)
	b.list("Key Insights", d.FeedbackInsights)

	b.heading(2, "Market Trend Analysis")
	trends := make([][]string, 0, len(d.EmergingTrends))
	for _, t := range d.EmergingTrends {
		trends = append(trends, []string{t.Label, t.Raw})
	}
	b.table([]string{"Emerging Trend", "Impact"}, trends)
	b.field("Business Model Impact", d.BusinessModelImpact)
	b.pairs("Future Market Shifts", d.MarketShifts)
	b.pairs("Recommended Strategies", d.Strategies)

	b.heading(2, "Recommendations")
	recs := make([][]string, 0, len(d.Recommendations))
	for _, r := range d.Recommendations {
		recs = append(recs, []string{r.Area, r.Recommendation, r.ExpectedImpact})
	}
	b.table([]string{"Area", "Recommendation", "Expected Impact"}, recs)

	b.heading(2, "Sources")
	for _, s := range d.Sources {
		if s.URL != "" {
			b.line(fmt.Sprintf("- [%s](%s)", inline(s.Title), strings.TrimSpace(s.URL)))
		} else {
			b.line("- " + inline(s.Title))
		}
	}
	b.line("")

	return strings.TrimSpace(b.String()) + "\n"
}

type mdBuilder struct {
	strings.Builder
}

func (b *mdBuilder) line(s string) {
	b.WriteString(s)
	b.WriteByte('\n')
}

func (b *mdBuilder) heading(level int, text string) {
	b.line(strings.Repeat("#", level) + " " + inline(text))
	b.line("")
}

func (b *mdBuilder) para(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.line(text)
	b.line("")
}

func (b *mdBuilder) field(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.para(fmt.Sprintf("**%s:** %s", label, inline(value)))
}

func (b *mdBuilder) list(label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.para(fmt.Sprintf("**%s:**", label))
	for _, item := range items {
		b.line("- " + inline(item))
	}
	b.line("")
}

func (b *mdBuilder) pairs(label string, items []Pair) {
	if len(items) == 0 {
		return
	}
	b.para(fmt.Sprintf("**%s:**", label))
	for _, p := range items {
		b.line(fmt.Sprintf("- **%s:** %s", inline(p.Title), inline(p.Text)))
	}
	b.line("")
}

func (b *mdBuilder) pairTable(left, right string, items []Pair) {
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		rows = append(rows, []string{p.Title, p.Text})
	}
	b.table([]string{left, right}, rows)
}

func (b *mdBuilder) table(header []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	b.line("| " + strings.Join(cells(header), " | ") + " |")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	b.line("| " + strings.Join(sep, " | ") + " |")
	for _, row := range rows {
		b.line("| " + strings.Join(cells(row), " | ") + " |")
	}
	b.line("")
}

func cells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.ReplaceAll(inline(c), "|", `\|`)
	}
	return out
}

// inline folds a value onto one line
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
