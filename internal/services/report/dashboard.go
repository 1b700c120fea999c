// Package report renders stored audit reports for people: dashboard data for
// charts and tabs, Markdown, HTML and PDF documents.
package report

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/bizaudit/internal/models"
)

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

// Point is one chart datum. Valid is false when Raw holds no number.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Raw   string  `json:"raw"`
	Valid bool    `json:"valid"`
}

// Pair is a titled piece of text
type Pair struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Competitor is a competitor card
type Competitor struct {
	Name       string   `json:"name"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// Swot holds the four SWOT quadrants
type Swot struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// Recommendation is one recommended action
type Recommendation struct {
	Area           string `json:"area"`
	Recommendation string `json:"recommendation"`
	ExpectedImpact string `json:"expectedImpact"`
}

// Source is a cited reference
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Dashboard is the chart and tab data for one audit
type Dashboard struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Domain   string `json:"domain"`
	Location string `json:"location"`

	History    string   `json:"history"`
	Mission    string   `json:"mission"`
	CoreValues []string `json:"coreValues"`

	Products         []Pair  `json:"products"`
	RevenueShare     []Point `json:"revenueShare"`
	Organization     string  `json:"organization"`
	Leadership       []Pair  `json:"leadership"`
	FinancialSummary string  `json:"financialSummary"`
	FinancialMetrics []Point `json:"financialMetrics"`

	Competitors    []Competitor `json:"competitors"`
	IndustryTrends []Pair       `json:"industryTrends"`
	MarketShare    string       `json:"marketShare"`
	Positioning    string       `json:"positioning"`
	Swot           Swot         `json:"swot"`

	GrowthAreas  []Pair `json:"growthAreas"`
	Expansions   []Pair `json:"expansions"`
	Partnerships []Pair `json:"partnerships"`
	Technology   []Pair `json:"technology"`

	Demographics      []Pair   `json:"demographics"`
	Psychographics    []Pair   `json:"psychographics"`
	RetentionRate     string   `json:"retentionRate"`
	LoyaltyPrograms   []string `json:"loyaltyPrograms"`
	UnderservedGroups []Pair   `json:"underservedSegments"`
	Satisfaction      string   `json:"satisfaction"`
	FeedbackInsights  []string `json:"feedbackInsights"`

	EmergingTrends      []Point `json:"emergingTrends"`
	BusinessModelImpact string  `json:"businessModelImpact"`
	MarketShifts        []Pair  `json:"marketShifts"`
	Strategies          []Pair  `json:"strategies"`

	Recommendations []Recommendation `json:"recommendations"`
	Sources         []Source         `json:"sources"`
}

// ParseNumber strips every character except digits and dots and parses
// what is left. "$1.2M" gives 1.2 and "15%" gives 15.
func ParseNumber(s string) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func point(label, raw models.Text) Point {
	v, ok := ParseNumber(raw.String())
	return Point{Label: label.String(), Value: v, Raw: raw.String(), Valid: ok}
}

// Title is the capitalised business name followed by "Report"
func Title(businessName string) string {
	name := strings.TrimSpace(businessName)
	if name == "" {
		return "Audit Report"
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:] + " Report"
}

// BuildDashboard decodes the record's report into dashboard data
func BuildDashboard(record *models.AuditRecord) (*Dashboard, error) {
	rep, err := record.DecodeReport()
	if err != nil {
		return nil, err
	}

	bp := rep.BusinessProfile
	ra := rep.RegionalAnalysis
	oa := rep.OpportunityAnalysis
	cb := rep.CustomerBaseAnalysis
	mt := rep.MarketTrendAnalysis

	d := &Dashboard{
		ID:       record.ID,
		Title:    Title(record.BusinessName),
		Domain:   record.BusinessDomain,
		Location: record.BusinessLocation,

		History:    bp.Overview.History.String(),
		Mission:    bp.Overview.Mission.String(),
		CoreValues: texts(bp.Overview.CoreValues),

		Organization:     bp.OrganizationalStructure.Description.String(),
		FinancialSummary: bp.FinancialHealth.Summary.String(),

		MarketShare: ra.MarketPosition.MarketShare.String(),
		Positioning: ra.MarketPosition.Positioning.String(),
		Swot: Swot{
			Strengths:     texts(ra.SwotAnalysis.Strengths),
			Weaknesses:    texts(ra.SwotAnalysis.Weaknesses),
			Opportunities: texts(ra.SwotAnalysis.Opportunities),
			Threats:       texts(ra.SwotAnalysis.Threats),
		},

		RetentionRate:    cb.CustomerRetention.RetentionRate.String(),
		LoyaltyPrograms:  texts(cb.CustomerRetention.LoyaltyPrograms),
		Satisfaction:     cb.CustomerFeedback.SatisfactionLevel.String(),
		FeedbackInsights: texts(cb.CustomerFeedback.KeyInsights),

		BusinessModelImpact: mt.BusinessModelImpact.String(),
	}

	for _, p := range bp.ProductsServices {
		d.Products = append(d.Products, Pair{Title: p.Name.String(), Text: joinNonEmpty(p.Description.String(), p.UniqueSellingProposition.String())})
		d.RevenueShare = append(d.RevenueShare, point(p.Name, p.RevenueShare))
	}
	for _, l := range bp.OrganizationalStructure.KeyLeadership {
		d.Leadership = append(d.Leadership, Pair{Title: l.Name.String(), Text: l.Position.String()})
	}
	for _, m := range bp.FinancialHealth.KeyMetrics {
		d.FinancialMetrics = append(d.FinancialMetrics, point(m.Metric, m.Value))
	}

	for _, c := range ra.Competitors {
		d.Competitors = append(d.Competitors, Competitor{Name: c.Name.String(), Strengths: texts(c.Strengths), Weaknesses: texts(c.Weaknesses)})
	}
	for _, t := range ra.IndustryTrends {
		d.IndustryTrends = append(d.IndustryTrends, Pair{Title: t.Trend.String(), Text: t.Impact.String()})
	}

	for _, g := range oa.GrowthAreas {
		d.GrowthAreas = append(d.GrowthAreas, Pair{Title: g.Area.String(), Text: g.Potential.String()})
	}
	for _, e := range oa.ProductServiceExpansions {
		d.Expansions = append(d.Expansions, Pair{Title: e.Idea.String(), Text: e.Rationale.String()})
	}
	for _, p := range oa.PotentialPartnerships {
		d.Partnerships = append(d.Partnerships, Pair{Title: p.Partner.String(), Text: p.Benefit.String()})
	}
	for _, t := range oa.TechnologicalOpportunities {
		d.Technology = append(d.Technology, Pair{Title: t.Technology.String(), Text: t.Application.String()})
	}

	d.Demographics = factors(cb.Demographics)
	d.Psychographics = factors(cb.Psychographics)
	for _, u := range cb.UnderservedSegments {
		d.UnderservedGroups = append(d.UnderservedGroups, Pair{Title: u.Segment.String(), Text: u.Opportunity.String()})
	}

	for _, t := range mt.EmergingTrends {
		d.EmergingTrends = append(d.EmergingTrends, point(t.Trend, t.Impact))
	}
	for _, s := range mt.FutureMarketShifts {
		d.MarketShifts = append(d.MarketShifts, Pair{Title: s.Shift.String(), Text: s.PotentialImpact.String()})
	}
	for _, s := range mt.RecommendedStrategies {
		d.Strategies = append(d.Strategies, Pair{Title: s.Strategy.String(), Text: s.Rationale.String()})
	}

	for _, r := range rep.Recommendations {
		d.Recommendations = append(d.Recommendations, Recommendation{
			Area:           r.Area.String(),
			Recommendation: r.Recommendation.String(),
			ExpectedImpact: r.ExpectedImpact.String(),
		})
	}
	for _, s := range rep.Sources {
		d.Sources = append(d.Sources, Source{Title: s.Title.String(), URL: s.URL.String()})
	}

	return d, nil
}

func texts(in []models.Text) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, t.String())
	}
	return out
}

func factors(in []models.Factor) []Pair {
	out := make([]Pair, 0, len(in))
	for _, f := range in {
		out = append(out, Pair{Title: f.Factor.String(), Text: f.Description.String()})
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
