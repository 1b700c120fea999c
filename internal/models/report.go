package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AuditReport is the typed view of a generated report. Field names follow the
// canonical report schema in internal/schema.
type AuditReport struct {
	BusinessProfile      BusinessProfile      `json:"businessProfile"`
	RegionalAnalysis     RegionalAnalysis     `json:"regionalAnalysis"`
	OpportunityAnalysis  OpportunityAnalysis  `json:"opportunityAnalysis"`
	CustomerBaseAnalysis CustomerBaseAnalysis `json:"customerBaseAnalysis"`
	MarketTrendAnalysis  MarketTrendAnalysis  `json:"marketTrendAnalysis"`
	Recommendations      []Recommendation     `json:"recommendations"`
	Sources              []Source             `json:"sources"`
}

type BusinessProfile struct {
	Overview                Overview                `json:"overview"`
	ProductsServices        []ProductService        `json:"productsServices"`
	OrganizationalStructure OrganizationalStructure `json:"organizationalStructure"`
	FinancialHealth         FinancialHealth         `json:"financialHealth"`
}

type Overview struct {
	History    Text   `json:"history"`
	Mission    Text   `json:"mission"`
	CoreValues []Text `json:"coreValues"`
}

type ProductService struct {
	Name                     Text `json:"name"`
	Description              Text `json:"description"`
	UniqueSellingProposition Text `json:"uniqueSellingProposition"`
	RevenueShare             Text `json:"revenueShare"`
}

type OrganizationalStructure struct {
	Description   Text     `json:"description"`
	KeyLeadership []Leader `json:"keyLeadership"`
}

type Leader struct {
	Name     Text `json:"name"`
	Position Text `json:"position"`
}

type FinancialHealth struct {
	Summary    Text     `json:"summary"`
	KeyMetrics []Metric `json:"keyMetrics"`
}

type Metric struct {
	Metric Text `json:"metric"`
	Value  Text `json:"value"`
}

type RegionalAnalysis struct {
	IndustryTrends []Trend        `json:"industryTrends"`
	Competitors    []Competitor   `json:"competitors"`
	SwotAnalysis   SwotAnalysis   `json:"swotAnalysis"`
	MarketPosition MarketPosition `json:"marketPosition"`
}

type Trend struct {
	Trend  Text `json:"trend"`
	Impact Text `json:"impact"`
}

type Competitor struct {
	Name       Text   `json:"name"`
	Strengths  []Text `json:"strengths"`
	Weaknesses []Text `json:"weaknesses"`
}

type SwotAnalysis struct {
	Strengths     []Text `json:"strengths"`
	Weaknesses    []Text `json:"weaknesses"`
	Opportunities []Text `json:"opportunities"`
	Threats       []Text `json:"threats"`
}

type MarketPosition struct {
	MarketShare Text `json:"marketShare"`
	Positioning Text `json:"positioning"`
}

type OpportunityAnalysis struct {
	GrowthAreas                []GrowthArea    `json:"growthAreas"`
	ProductServiceExpansions   []Expansion     `json:"productServiceExpansions"`
	PotentialPartnerships      []Partnership   `json:"potentialPartnerships"`
	TechnologicalOpportunities []TechnologyUse `json:"technologicalOpportunities"`
}

type GrowthArea struct {
	Area      Text `json:"area"`
	Potential Text `json:"potential"`
}

type Expansion struct {
	Idea      Text `json:"idea"`
	Rationale Text `json:"rationale"`
}

type Partnership struct {
	Partner Text `json:"partner"`
	Benefit Text `json:"benefit"`
}

type TechnologyUse struct {
	Technology  Text `json:"technology"`
	Application Text `json:"application"`
}

type CustomerBaseAnalysis struct {
	Demographics        []Factor             `json:"demographics"`
	Psychographics      []Factor             `json:"psychographics"`
	CustomerRetention   CustomerRetention    `json:"customerRetention"`
	UnderservedSegments []UnderservedSegment `json:"underservedSegments"`
	CustomerFeedback    CustomerFeedback     `json:"customerFeedback"`
}

type Factor struct {
	Factor      Text `json:"factor"`
	Description Text `json:"description"`
}

type CustomerRetention struct {
	RetentionRate   Text   `json:"retentionRate"`
	LoyaltyPrograms []Text `json:"loyaltyPrograms"`
}

type UnderservedSegment struct {
	Segment     Text `json:"segment"`
	Opportunity Text `json:"opportunity"`
}

type CustomerFeedback struct {
	SatisfactionLevel Text   `json:"satisfactionLevel"`
	KeyInsights       []Text `json:"keyInsights"`
}

type MarketTrendAnalysis struct {
	EmergingTrends        []Trend       `json:"emergingTrends"`
	BusinessModelImpact   Text          `json:"businessModelImpact"`
	FutureMarketShifts    []MarketShift `json:"futureMarketShifts"`
	RecommendedStrategies []Strategy    `json:"recommendedStrategies"`
}

type MarketShift struct {
	Shift           Text `json:"shift"`
	PotentialImpact Text `json:"potentialImpact"`
}

type Strategy struct {
	Strategy  Text `json:"strategy"`
	Rationale Text `json:"rationale"`
}

type Recommendation struct {
	Area           Text `json:"area"`
	Recommendation Text `json:"recommendation"`
	ExpectedImpact Text `json:"expectedImpact"`
}

type Source struct {
	Title Text `json:"title"`
	URL   Text `json:"url"`
}

// Text is a leaf value. Models do not always honour the string-only
// template, so numbers and booleans are accepted and kept in their literal form.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		// Nested values in a leaf are flattened to their compact JSON form
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = Text(buf.String())
		return nil
	}
	*t = Text(strings.TrimSpace(string(data)))
	return nil
}

func (t Text) String() string {
	return string(t)
}
