package analytics

// Имена триггеров исполнительных устройств
const (
	TriggerLowTds  = FeatureLowTdsTrigger
	TriggerHighTds = FeatureHighTdsTrigger
	TriggerLowPh   = FeatureLowPhTrigger
	TriggerHighPh  = FeatureHighPhTrigger
	TriggerFogger  = FeatureFoggerTrigger
)

// Bounds нижняя и верхняя граница параметра, заданные оператором
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// EvaluateTriggers сравнивает прогноз с границами оператора.
// Если нет значения признака или границ для него, соответствующие триггеры
// не попадают в результат. Туманообразователь управляется только нижней
// границей влажности.
func EvaluateTriggers(forecast map[string]float64, settings map[string]Bounds) map[string]bool {
	status := make(map[string]bool)

	if tds, bounds, ok := lookup(forecast, settings, FeatureTDS); ok {
		status[TriggerLowTds] = tds < bounds.Lower
		status[TriggerHighTds] = tds > bounds.Upper
	}

	if ph, bounds, ok := lookup(forecast, settings, FeaturePH); ok {
		status[TriggerLowPh] = ph < bounds.Lower
		status[TriggerHighPh] = ph > bounds.Upper
	}

	if humidity, bounds, ok := lookup(forecast, settings, FeatureSurroundingHumidity); ok {
		status[TriggerFogger] = humidity < bounds.Lower
	}

	return status
}

func lookup(forecast map[string]float64, settings map[string]Bounds, feature string) (float64, Bounds, bool) {
	value, ok := forecast[feature]
	if !ok {
		return 0, Bounds{}, false
	}
	bounds, ok := settings[feature]
	if !ok {
		return 0, Bounds{}, false
	}
	return value, bounds, true
}
