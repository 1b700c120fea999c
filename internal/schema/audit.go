package schema

// Top-level sections of an audit report, in template order
const (
	SectionBusinessProfile      = "businessProfile"
	SectionRegionalAnalysis     = "regionalAnalysis"
	SectionOpportunityAnalysis  = "opportunityAnalysis"
	SectionCustomerBaseAnalysis = "customerBaseAnalysis"
	SectionMarketTrendAnalysis  = "marketTrendAnalysis"
	SectionRecommendations      = "recommendations"
	SectionSources              = "sources"
)

// pair is a sequence of two-field records, the most common report shape
func pair(a, b string) *Node {
	return Sequence(Object(F(a, Leaf()), F(b, Leaf())))
}

func leaves() *Node {
	return Sequence(Leaf())
}

// AuditReport returns the canonical report schema. A fresh tree is built on
// every call so callers may not mutate a shared value.
func AuditReport() *Node {
	return Object(
		F(SectionBusinessProfile, Object(
			F("overview", Object(
				F("history", Leaf()),
				F("mission", Leaf()),
				F("coreValues", leaves()),
			)),
			F("productsServices", Sequence(Object(
				F("name", Leaf()),
				F("description", Leaf()),
				F("uniqueSellingProposition", Leaf()),
				F("revenueShare", Leaf()),
			))),
			F("organizationalStructure", Object(
				F("description", Leaf()),
				F("keyLeadership", pair("name", "position")),
			)),
			F("financialHealth", Object(
				F("summary", Leaf()),
				F("keyMetrics", pair("metric", "value")),
			)),
		)),
		F(SectionRegionalAnalysis, Object(
			F("industryTrends", pair("trend", "impact")),
			F("competitors", Sequence(Object(
				F("name", Leaf()),
				F("strengths", leaves()),
				F("weaknesses", leaves()),
			))),
			F("swotAnalysis", Object(
				F("strengths", leaves()),
				F("weaknesses", leaves()),
				F("opportunities", leaves()),
				F("threats", leaves()),
			)),
			F("marketPosition", Object(
				F("marketShare", Leaf()),
				F("positioning", Leaf()),
			)),
		)),
		F(SectionOpportunityAnalysis, Object(
			F("growthAreas", pair("area", "potential")),
			F("productServiceExpansions", pair("idea", "rationale")),
			F("potentialPartnerships", pair("partner", "benefit")),
			F("technologicalOpportunities", pair("technology", "application")),
		)),
		F(SectionCustomerBaseAnalysis, Object(
			F("demographics", pair("factor", "description")),
			F("psychographics", pair("factor", "description")),
			F("customerRetention", Object(
				F("retentionRate", Leaf()),
				F("loyaltyPrograms", leaves()),
			)),
			F("underservedSegments", pair("segment", "opportunity")),
			F("customerFeedback", Object(
				F("satisfactionLevel", Leaf()),
				F("keyInsights", leaves()),
			)),
		)),
		F(SectionMarketTrendAnalysis, Object(
			F("emergingTrends", pair("trend", "impact")),
			F("businessModelImpact", Leaf()),
			F("futureMarketShifts", pair("shift", "potentialImpact")),
			F("recommendedStrategies", pair("strategy", "rationale")),
		)),
		F(SectionRecommendations, Sequence(Object(
			F("area", Leaf()),
			F("recommendation", Leaf()),
			F("expectedImpact", Leaf()),
		))),
		F(SectionSources, pair("title", "url")),
	)
}
