package vitals

// Names of the vitals stored as dedicated columns on a critical factor.
const (
	HeartRate              = "heartRate"
	BloodPressureSystolic  = "bloodPressureSystolic"
	BloodPressureDiastolic = "bloodPressureDiastolic"
	SpO2                   = "spO2"
	Temperature            = "temperature"
	GCS                    = "gcs"
	PainScale              = "painScale"
	BloodGlucose           = "bloodGlucose"
	UrineOutput            = "urineOutput"
)

var builtin = map[string]struct{}{
	HeartRate: {}, BloodPressureSystolic: {}, BloodPressureDiastolic: {}, SpO2: {},
	Temperature: {}, GCS: {}, PainScale: {}, BloodGlucose: {}, UrineOutput: {},
}

// IsBuiltin reports whether name has a dedicated column.
func IsBuiltin(name string) bool {
	_, ok := builtin[name]
	return ok
}

func num(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

// DefaultConfigs is the configuration seeded into a fresh database.
func DefaultConfigs() []CreateConfigRequest {
	return []CreateConfigRequest{
		{Name: HeartRate, Label: "Heart Rate", Unit: str("bpm"), NormalRangeMin: num(60), NormalRangeMax: num(100), DisplayOrder: 1},
		{Name: BloodPressureSystolic, Label: "Blood Pressure (Systolic)", Unit: str("mmHg"), NormalRangeMin: num(90), NormalRangeMax: num(140), DisplayOrder: 2},
		{Name: BloodPressureDiastolic, Label: "Blood Pressure (Diastolic)", Unit: str("mmHg"), NormalRangeMin: num(60), NormalRangeMax: num(90), DisplayOrder: 3},
		{Name: SpO2, Label: "SpO2", Unit: str("%"), NormalRangeMin: num(95), NormalRangeMax: num(100), DisplayOrder: 4},
		{Name: Temperature, Label: "Temperature", Unit: str("°C"), NormalRangeMin: num(36.1), NormalRangeMax: num(37.2), DisplayOrder: 5},
		{Name: GCS, Label: "Glasgow Coma Scale", NormalRangeMin: num(15), NormalRangeMax: num(15), DisplayOrder: 6},
		{Name: PainScale, Label: "Pain Scale", NormalRangeMin: num(0), NormalRangeMax: num(3), DisplayOrder: 7},
		{Name: BloodGlucose, Label: "Blood Glucose", Unit: str("mg/dL"), NormalRangeMin: num(70), NormalRangeMax: num(140), DisplayOrder: 8},
		{Name: UrineOutput, Label: "Urine Output", Unit: str("mL/hr"), NormalRangeMin: num(30), DisplayOrder: 9},
	}
}
