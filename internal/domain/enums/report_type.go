package enums

type ReportType string

const (
	ReportTypeNatalChart      ReportType = "natal_chart"
	ReportTypeLunarCycle      ReportType = "lunar_cycle"
	ReportTypeSynastry        ReportType = "synastry"
	ReportTypeTransitForecast ReportType = "transit_forecast"
	ReportTypeBundle          ReportType = "bundle"
)

type ProductID string

const (
	ProductNatalChart          ProductID = "natal-chart"
	ProductLunarCycle          ProductID = "lunar-cycle"
	ProductSynastryCompat      ProductID = "synastry-compatibility"
	ProductTransitForecast     ProductID = "transit-forecast"
	ProductCelestialCollection ProductID = "celestial-collection"
)

// ParseReportType falls back to natal_chart for unknown input.
func ParseReportType(raw string) ReportType {
	switch rt := ReportType(raw); rt {
	case ReportTypeNatalChart, ReportTypeLunarCycle, ReportTypeSynastry, ReportTypeTransitForecast, ReportTypeBundle:
		return rt
	default:
		return ReportTypeNatalChart
	}
}
