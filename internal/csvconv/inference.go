package csvconv

import (
	"math"
	"strings"

	"github.com/ivan-cunha/feather-format/pkg/types"
)

const DefaultSampleSize = 100

// ColumnSpec is the inferred type of one CSV column.
type ColumnSpec struct {
	Name     string
	Type     types.DataType
	Nullable bool
}

type typeInference struct {
	possibleTypes map[types.DataType]bool
	nullCount     int
	sampleCount   int
	nullable      bool
}

func newTypeInference() typeInference {
	return typeInference{
		possibleTypes: map[types.DataType]bool{
			types.BoolType:      true,
			types.Int32Type:     true,
			types.Int64Type:     true,
			types.Float64Type:   true,
			types.DateType:      true,
			types.TimestampType: true,
			types.StringType:    true,
		},
	}
}

// typeOrder lists candidate types from most to least specific. Float32 is
// never inferred since decimal text rarely survives the narrowing.
var typeOrder = []types.DataType{
	types.BoolType,
	types.Int32Type,
	types.Int64Type,
	types.Float64Type,
	types.DateType,
	types.TimestampType,
	types.StringType,
}

// InferColumns infers the type of every column from the first sampleSize
// rows. A column holding only nulls in the sample is a nullable String.
func InferColumns(headers []string, rows [][]string, sampleSize int) []ColumnSpec {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if len(rows) > sampleSize {
		rows = rows[:sampleSize]
	}

	inferences := make([]typeInference, len(headers))
	for i := range inferences {
		inferences[i] = newTypeInference()
	}
	for _, row := range rows {
		for j := range headers {
			if j < len(row) {
				analyzeValue(&inferences[j], row[j])
			} else {
				analyzeValue(&inferences[j], "")
			}
		}
	}
	return finalizeTypes(inferences, headers)
}

func analyzeValue(inference *typeInference, value string) {
	inference.sampleCount++
	value = strings.TrimSpace(value)

	if isNull(value) {
		inference.nullCount++
		inference.nullable = true
		return
	}

	if inference.possibleTypes[types.BoolType] {
		if _, err := parseBoolean(value); err != nil {
			inference.possibleTypes[types.BoolType] = false
		}
	}

	if inference.possibleTypes[types.Int32Type] {
		if val, err := parseInt64(value); err != nil || val > math.MaxInt32 || val < math.MinInt32 {
			inference.possibleTypes[types.Int32Type] = false
		}
	}

	if inference.possibleTypes[types.Int64Type] {
		if _, err := parseInt64(value); err != nil {
			inference.possibleTypes[types.Int64Type] = false
		}
	}

	if inference.possibleTypes[types.Float64Type] {
		if _, err := parseFloat64(value); err != nil {
			inference.possibleTypes[types.Float64Type] = false
		}
	}

	if inference.possibleTypes[types.DateType] {
		if _, err := parseDate(value); err != nil {
			inference.possibleTypes[types.DateType] = false
		}
	}

	if inference.possibleTypes[types.TimestampType] {
		if _, err := parseTimestamp(value); err != nil {
			inference.possibleTypes[types.TimestampType] = false
		}
	}
}

func finalizeTypes(inferences []typeInference, headers []string) []ColumnSpec {
	result := make([]ColumnSpec, len(inferences))

	for i, inf := range inferences {
		result[i] = ColumnSpec{
			Name:     headers[i],
			Type:     types.StringType,
			Nullable: inf.nullable,
		}
		if inf.nullCount == inf.sampleCount {
			continue
		}

		// Select the most specific type that's still possible
		for _, t := range typeOrder {
			if inf.possibleTypes[t] {
				result[i].Type = t
				break
			}
		}
	}

	return result
}
