package analytics

// Имена признаков в каноническом порядке столбцов матрицы
const (
	FeatureSurroundingTemperature = "surroundingTemperature"
	FeatureSurroundingHumidity    = "surroundingHumidity"
	FeatureSolutionTemperature    = "solutionTemperature"
	FeaturePH                     = "pH"
	FeatureTDS                    = "tds"
	FeatureLightIntensity         = "lightIntensity"
	FeatureFoggerTemperature      = "foggerTemperature"
	FeatureFoggerHumidity         = "foggerHumidity"
	FeatureLowTdsTrigger          = "lowTdsTrigger"
	FeatureHighTdsTrigger         = "highTdsTrigger"
	FeatureLowPhTrigger           = "lowPhTrigger"
	FeatureHighPhTrigger          = "highPhTrigger"
	FeatureFoggerTrigger          = "foggerTrigger"
)

// FeatureNames каноническая схема: порядок столбцов общий для нормализации,
// окон, модели и триггеров
var FeatureNames = []string{
	FeatureSurroundingTemperature,
	FeatureSurroundingHumidity,
	FeatureSolutionTemperature,
	FeaturePH,
	FeatureTDS,
	FeatureLightIntensity,
	FeatureFoggerTemperature,
	FeatureFoggerHumidity,
	FeatureLowTdsTrigger,
	FeatureHighTdsTrigger,
	FeatureLowPhTrigger,
	FeatureHighPhTrigger,
	FeatureFoggerTrigger,
}

// NumFeatures количество признаков в схеме
var NumFeatures = len(FeatureNames)

// FeatureIndex возвращает индекс столбца признака или -1
func FeatureIndex(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// RowToFeatures сопоставляет строку матрицы с именами признаков
func RowToFeatures(row []float64) map[string]float64 {
	out := make(map[string]float64, len(row))
	for i, name := range FeatureNames {
		if i < len(row) {
			out[name] = row[i]
		}
	}
	return out
}
