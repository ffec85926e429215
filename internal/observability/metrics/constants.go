package metrics

// Operation names used across pipeline metrics.
const (
	OpIdentify       = "identify"
	OpFeatureExtract = "feature_extract"
	OpPrediction     = "prediction"
	OpImageLookup    = "image_lookup"
	OpImageFetch     = "image_fetch"
)

// Operation outcomes.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
)
