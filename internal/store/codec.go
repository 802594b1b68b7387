package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
)

// marshalNullable encodes v as JSON, returning nil for a nil pointer so the
// column stores NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func marshalRevision(rev *model.NegotiationRevision) (inputs, results, flags []byte, err error) {
	if inputs, err = json.Marshal(rev.Inputs); err != nil {
		return nil, nil, nil, eris.Wrap(err, "inputs")
	}
	if results, err = marshalNullable(rev.Results); err != nil {
		return nil, nil, nil, eris.Wrap(err, "results")
	}
	riskFlags := rev.RiskFlags
	if riskFlags == nil {
		riskFlags = []string{}
	}
	if flags, err = json.Marshal(riskFlags); err != nil {
		return nil, nil, nil, eris.Wrap(err, "risk flags")
	}
	return inputs, results, flags, nil
}

func unmarshalRevision(rev *model.NegotiationRevision, inputs, results, flags []byte) error {
	if err := json.Unmarshal(inputs, &rev.Inputs); err != nil {
		return eris.Wrap(err, "inputs")
	}
	if len(results) > 0 {
		rev.Results = &model.NegotiationResults{}
		if err := json.Unmarshal(results, rev.Results); err != nil {
			return eris.Wrap(err, "results")
		}
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &rev.RiskFlags); err != nil {
			return eris.Wrap(err, "risk flags")
		}
	}
	return nil
}

// bumped returns the counter as it stands after a successful increment.
func bumped(current model.UsageCounter, at time.Time) *model.UsageCounter {
	next := current
	next.UsageCount++
	next.Version++
	next.LastUsedAt = &at
	return &next
}
