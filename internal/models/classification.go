package models

// Classification is the typed result of the external content classifier,
// resolved once at the classifier-client boundary. Callers never see the
// upstream service's loose field variants.
type Classification struct {
	IsHarmful       bool    `json:"is_harmful"`
	PredictedResult string  `json:"predicted_result"`
	SentimentScore  float64 `json:"sentiment_score"`
}

// DegradedClassification is used when the classifier is unreachable: the
// event is still logged, with harmfulness assumed false.
func DegradedClassification() Classification {
	return Classification{
		IsHarmful:       false,
		PredictedResult: "unknown",
		SentimentScore:  0,
	}
}
