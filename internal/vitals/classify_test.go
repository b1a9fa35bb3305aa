package vitals

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func activeConfig(name string, lo, hi *float64) Config {
	return Config{Name: name, DataType: DataTypeNumber, NormalRangeMin: lo, NormalRangeMax: hi, IsActive: true}
}

func TestClassify(t *testing.T) {
	configs := []Config{
		activeConfig(SpO2, ptr(95), ptr(100)),
		activeConfig(HeartRate, ptr(60), ptr(100)),
		activeConfig(UrineOutput, ptr(30), nil),
	}

	tests := []struct {
		name   string
		sample Sample
		want   Flags
	}{
		{"low spO2", Sample{SpO2: 88}, Flags{SpO2: Low}},
		{"high heart rate", Sample{HeartRate: 130}, Flags{HeartRate: High}},
		{"lower boundary is normal", Sample{SpO2: 95}, Flags{}},
		{"upper boundary is normal", Sample{HeartRate: 100}, Flags{}},
		{"open maximum", Sample{UrineOutput: 5000}, Flags{}},
		{"open maximum below min", Sample{UrineOutput: 10}, Flags{UrineOutput: Low}},
		{"missing readings skipped", Sample{}, Flags{}},
		{"vital without config ignored", Sample{"lactate": 9}, Flags{}},
		{
			"several flags",
			Sample{SpO2: 90, HeartRate: 40, UrineOutput: 50},
			Flags{SpO2: Low, HeartRate: Low},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.sample, configs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want) > 0, got.Critical())
		})
	}
}

func TestClassify_InactiveConfigIgnored(t *testing.T) {
	c := activeConfig(SpO2, ptr(95), ptr(100))
	c.IsActive = false

	got, err := Classify(Sample{SpO2: 50}, []Config{c})

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClassify_InvertedRangeIsConfigError(t *testing.T) {
	configs := []Config{activeConfig(Temperature, ptr(38), ptr(36))}

	_, err := Classify(Sample{Temperature: 37}, configs)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	// not evaluated when there is no reading
	_, err = Classify(Sample{}, configs)
	assert.NoError(t, err)
}

func TestClassify_DynamicValues(t *testing.T) {
	configs := []Config{activeConfig("lactate", nil, ptr(2))}
	sample := Sample{}
	sample.AddDynamic(DynamicVitals{"lactate": NumberValue(4.1), "mood": TextValue("calm")})

	got, err := Classify(sample, configs)

	require.NoError(t, err)
	assert.Equal(t, Flags{"lactate": High}, got)
}

func TestFlagsNames(t *testing.T) {
	f := Flags{SpO2: Low, HeartRate: High}
	assert.Equal(t, []string{HeartRate, SpO2}, f.Names())
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(ptr(1), ptr(1)))
	assert.NoError(t, ValidateRange(nil, ptr(1)))
	assert.Error(t, ValidateRange(ptr(2), ptr(1)))
}

func TestValidateDynamic(t *testing.T) {
	configs := []Config{
		activeConfig("lactate", nil, ptr(2)),
		{Name: "consciousness", DataType: DataTypeText, IsActive: true},
		{Name: "retired", DataType: DataTypeNumber, IsActive: false},
	}

	assert.NoError(t, ValidateDynamic(DynamicVitals{"lactate": NumberValue(1), "consciousness": TextValue("alert")}, configs))
	assert.NoError(t, ValidateDynamic(DynamicVitals{"lactate": {}}, configs))
	assert.Error(t, ValidateDynamic(DynamicVitals{"lactate": TextValue("high")}, configs))
	assert.Error(t, ValidateDynamic(DynamicVitals{"consciousness": NumberValue(3)}, configs))
	assert.Error(t, ValidateDynamic(DynamicVitals{"retired": NumberValue(3)}, configs))
	assert.Error(t, ValidateDynamic(DynamicVitals{SpO2: NumberValue(90)}, configs))
}
