package research

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
)

// ErrParse is returned when the model's answer cannot be read as an analysis.
var ErrParse = eris.New("Failed to parse AI analysis")

// Analysis is the structured answer requested from the model.
type Analysis struct {
	Brief       model.ResearchBrief `json:"brief"`
	Comparables []model.Comparable  `json:"comparables"`
}

// StripFences removes a leading ```json or ``` and a trailing ``` fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseAnalysis decodes the model output. Strict JSON is tried first, then
// json-repair, then Hjson for unquoted or commented output.
func ParseAnalysis(raw string) (*Analysis, error) {
	content := StripFences(raw)
	if content == "" {
		return nil, ErrParse
	}

	var a Analysis
	if err := json.Unmarshal([]byte(content), &a); err == nil {
		return normalizeAnalysis(&a), nil
	}

	if repaired, err := jsonrepair.RepairJSON(content); err == nil {
		a = Analysis{}
		if err := json.Unmarshal([]byte(repaired), &a); err == nil {
			zap.L().Debug("research: analysis repaired")
			return normalizeAnalysis(&a), nil
		}
	}

	var loose any
	if err := hjson.Unmarshal([]byte(content), &loose); err == nil {
		if b, err := json.Marshal(loose); err == nil {
			a = Analysis{}
			if err := json.Unmarshal(b, &a); err == nil {
				zap.L().Debug("research: analysis parsed as hjson")
				return normalizeAnalysis(&a), nil
			}
		}
	}

	zap.L().Warn("research: unparseable analysis", zap.Int("length", len(content)))
	return nil, ErrParse
}

func normalizeAnalysis(a *Analysis) *Analysis {
	if a.Brief.Risks == nil {
		a.Brief.Risks = []string{}
	}
	if a.Brief.Opportunities == nil {
		a.Brief.Opportunities = []string{}
	}
	if a.Comparables == nil {
		a.Comparables = []model.Comparable{}
	}
	return a
}
