package registry

import (
	"strings"

	"gend/pkg/types"
)

// dtypeRule maps a model-id pattern to a default precision. Rules are
// evaluated in order; the first match wins.
type dtypeRule struct {
	match func(id string) bool
	dtype types.Dtype
}

// Name-pattern defaults applied when neither an explicit override nor a
// registry-declared dtype exists.
var dtypeRules = []dtypeRule{
	{match: containsFold("gemma"), dtype: types.DtypeFP32},
	{match: containsFold("nanochat"), dtype: types.DtypeQ4},
}

const fallbackDtype = types.DtypeQ4F16

func containsFold(sub string) func(string) bool {
	return func(id string) bool {
		return strings.Contains(strings.ToLower(id), sub)
	}
}

// ResolveDtype picks the precision for a load, by priority: explicit session
// override, registry-declared dtype for the model, name-pattern default.
func (r *Registry) ResolveDtype(modelID string, override types.Dtype) types.Dtype {
	if override != "" {
		return override
	}
	if m, ok := r.Lookup(modelID); ok && m.Dtype != "" {
		return m.Dtype
	}
	return HeuristicDtype(modelID)
}

// HeuristicDtype applies the name-pattern rule table alone.
func HeuristicDtype(modelID string) types.Dtype {
	for _, rule := range dtypeRules {
		if rule.match(modelID) {
			return rule.dtype
		}
	}
	return fallbackDtype
}
