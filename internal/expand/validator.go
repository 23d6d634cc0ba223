package expand

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gmickel/docdex/configs"
)

// maxReportedErrors caps how many schema failures a validation reports.
// The first few are enough for diagnostics; model output can fail in bulk.
const maxReportedErrors = 5

var schemaLoader = gojsonschema.NewStringLoader(configs.ExpansionResultSchema)

// Validate checks a candidate result against the embedded expansion schema
// plus the one contract the schema cannot express: the original query must
// appear verbatim in both query arrays.
//
// It is a pure function returning the outcome and the first few failure
// messages; it never mutates the candidate.
func Validate(query string, candidate *Result) (bool, []string) {
	if candidate == nil {
		return false, []string{"result is nil"}
	}

	doc, err := json.Marshal(candidate)
	if err != nil {
		return false, []string{fmt.Sprintf("result not serializable: %v", err)}
	}

	outcome, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return false, []string{fmt.Sprintf("schema validation error: %v", err)}
	}

	var errs []string
	if !outcome.Valid() {
		for _, desc := range outcome.Errors() {
			if len(errs) >= maxReportedErrors {
				break
			}
			errs = append(errs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
	}

	if len(errs) < maxReportedErrors {
		if !contains(candidate.LexicalQueries, query) {
			errs = append(errs, "lexicalQueries: missing original query")
		}
	}
	if len(errs) < maxReportedErrors {
		if !contains(candidate.VectorQueries, query) {
			errs = append(errs, "vectorQueries: missing original query")
		}
	}

	return len(errs) == 0, errs
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
