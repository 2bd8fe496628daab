package schema

const (
	FieldStdGlucoseAllTime      = "std_glucose_alltime"
	FieldMinGlucoseAllTime      = "min_glucose_alltime"
	FieldMaxGlucoseAllTime      = "max_glucose_alltime"
	FieldAvgDailyInsulinAllTime = "avg_daily_insulin_alltime"
	FieldHypoEventCountAllTime  = "hypo_event_count_alltime"
	FieldMeanGlucoseLast30Days  = "mean_glucose_last_30_days"
	FieldStdGlucoseLast30Days   = "std_glucose_last_30_days"
	FieldGlycemicVariabilityIdx = "glycemic_variability_index"
)

// PatientSummary is the user-entered historical summary. Ranges are not
// checked here; see Ranges for the bounds the input widgets apply.
type PatientSummary struct {
	StdGlucoseAllTime        float64 `json:"std_glucose_alltime"`
	MinGlucoseAllTime        float64 `json:"min_glucose_alltime"`
	MaxGlucoseAllTime        float64 `json:"max_glucose_alltime"`
	AvgDailyInsulinAllTime   float64 `json:"avg_daily_insulin_alltime"`
	HypoEventCountAllTime    float64 `json:"hypo_event_count_alltime"`
	MeanGlucoseLast30Days    float64 `json:"mean_glucose_last_30_days"`
	StdGlucoseLast30Days     float64 `json:"std_glucose_last_30_days"`
	GlycemicVariabilityIndex float64 `json:"glycemic_variability_index"`
}

type Field struct {
	Name  string
	Value float64
}

// Fields returns the eight inputs in a fixed order.
func (p PatientSummary) Fields() []Field {
	return []Field{
		{FieldStdGlucoseAllTime, p.StdGlucoseAllTime},
		{FieldMinGlucoseAllTime, p.MinGlucoseAllTime},
		{FieldMaxGlucoseAllTime, p.MaxGlucoseAllTime},
		{FieldAvgDailyInsulinAllTime, p.AvgDailyInsulinAllTime},
		{FieldHypoEventCountAllTime, p.HypoEventCountAllTime},
		{FieldMeanGlucoseLast30Days, p.MeanGlucoseLast30Days},
		{FieldStdGlucoseLast30Days, p.StdGlucoseLast30Days},
		{FieldGlycemicVariabilityIdx, p.GlycemicVariabilityIndex},
	}
}

// Set assigns one input by field name and reports whether the name is known.
func (p *PatientSummary) Set(field string, v float64) bool {
	switch field {
	case FieldStdGlucoseAllTime:
		p.StdGlucoseAllTime = v
	case FieldMinGlucoseAllTime:
		p.MinGlucoseAllTime = v
	case FieldMaxGlucoseAllTime:
		p.MaxGlucoseAllTime = v
	case FieldAvgDailyInsulinAllTime:
		p.AvgDailyInsulinAllTime = v
	case FieldHypoEventCountAllTime:
		p.HypoEventCountAllTime = v
	case FieldMeanGlucoseLast30Days:
		p.MeanGlucoseLast30Days = v
	case FieldStdGlucoseLast30Days:
		p.StdGlucoseLast30Days = v
	case FieldGlycemicVariabilityIdx:
		p.GlycemicVariabilityIndex = v
	default:
		return false
	}
	return true
}

// Range is the plausible bound and default of one input widget.
type Range struct {
	Field   string  `json:"field"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

var ranges = []Range{
	{FieldStdGlucoseAllTime, "Glucose Variability (Std. Dev. all-time)", 10, 100, 0.5, 50},
	{FieldMinGlucoseAllTime, "Lowest Glucose Reading (all-time)", 40, 100, 1, 70},
	{FieldMaxGlucoseAllTime, "Highest Glucose Reading (all-time)", 200, 600, 1, 350},
	{FieldAvgDailyInsulinAllTime, "Average Daily Insulin (units)", 10, 80, 1, 35},
	{FieldHypoEventCountAllTime, "Total Hypoglycemic Events (all-time)", 0, 50, 1, 5},
	{FieldMeanGlucoseLast30Days, "Average Glucose (last 30 days)", 80, 400, 1, 160},
	{FieldStdGlucoseLast30Days, "Glucose Variability (last 30 days)", 10, 100, 0.5, 60},
	{FieldGlycemicVariabilityIdx, "Glycemic Variability Index (std/mean)", 0.1, 1.0, 0.01, 0.4},
}

func Ranges() []Range {
	out := make([]Range, len(ranges))
	copy(out, ranges)
	return out
}

func RangeFor(field string) (Range, bool) {
	for _, r := range ranges {
		if r.Field == field {
			return r, true
		}
	}
	return Range{}, false
}

// DefaultSummary returns the widget defaults.
func DefaultSummary() PatientSummary {
	return PatientSummary{
		StdGlucoseAllTime:        50,
		MinGlucoseAllTime:        70,
		MaxGlucoseAllTime:        350,
		AvgDailyInsulinAllTime:   35,
		HypoEventCountAllTime:    5,
		MeanGlucoseLast30Days:    160,
		StdGlucoseLast30Days:     60,
		GlycemicVariabilityIndex: 0.4,
	}
}
