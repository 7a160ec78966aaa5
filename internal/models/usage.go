package models

// Feature — метрируемая фича бесплатного тарифа.
type Feature string

const (
	FeatureChat  Feature = "chat"
	FeatureImage Feature = "image"
	FeatureVoice Feature = "voice"
)

// Features — закрытый набор метрируемых фич.
var Features = []Feature{FeatureChat, FeatureImage, FeatureVoice}

func IsValidFeature(f Feature) bool {
	switch f {
	case FeatureChat, FeatureImage, FeatureVoice:
		return true
	}
	return false
}

// UsageCounter — значение ключа nexusAi_<feature>_usage_<userId>.
// Инвариант: 0 <= Remaining <= потолок фичи.
type UsageCounter struct {
	Remaining int `json:"remaining"`
}
