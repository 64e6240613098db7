package tools

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/scrape"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/pkg/jina"
	"github.com/sells-group/lead-engine/pkg/perplexity"
)

// Deps are the backends tools delegate to. Any of them may be nil; a tool
// whose backend is missing returns an empty result with an explanatory
// message instead of failing.
type Deps struct {
	Engine          *search.Engine
	Places          search.Backend
	Perplexity      perplexity.Client
	PerplexityModel string
	Scrape          *scrape.Chain
	Jina            jina.Client
	Scorer          *scorer.Scorer
	Guard           *resilience.Guard
	// AILimit caps model-scored leads per score_opportunity call.
	AILimit int
}

// decodeInput unmarshals validated input into T. Empty input decodes to
// the zero value.
func decodeInput[T any](input json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(input)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return v, eris.Wrap(err, "tools: decode input")
	}
	return v, nil
}

func notConfigured(what string) Result {
	return Result{Message: what + " is not configured; no results"}
}
