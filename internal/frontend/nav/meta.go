package nav

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/itchyny/gojq"
	"github.com/pkg/errors"

	"github.com/wayfind/wayfind/internal/ginutil"
	"github.com/wayfind/wayfind/internal/http/httperror"
)

// DefaultMetaEndpoints is the meta endpoint configuration used when the
// operator supplies none.
var DefaultMetaEndpoints = map[string]string{
	"/instruction": ".step.instruction",
}

// ParseMetaEndpoints parses a JSON object of endpoint → gojq filter, the
// form the --session-endpoints flag takes. An empty string yields
// DefaultMetaEndpoints.
func ParseMetaEndpoints(raw string) (map[string]string, error) {
	if raw == "" {
		return DefaultMetaEndpoints, nil
	}

	endpoints := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &endpoints); err != nil {
		return nil, errors.Wrap(err, "parse session endpoints")
	}

	// Fail fast on filters that would 500 on every request.
	for endpoint, filter := range endpoints {
		if _, err := gojq.Parse(filter); err != nil {
			return nil, errors.Wrapf(err, "parse filter for %s", endpoint)
		}
	}

	return endpoints, nil
}

// configureMeta registers one handler per configured meta endpoint. Each
// handler serves the session document filtered through the endpoint's gojq
// program, so operators can shape exactly what a voice agent polls for.
func (f Frontend) configureMeta(group gin.IRouter) {
	router := ginutil.TrailingSlashRouteHelper{IRouter: group}

	for endpoint, filter := range f.meta {
		filter := filter
		router.GET(endpoint, func(ctx *gin.Context) {
			snap, err := f.lookup(ctx)
			if err != nil {
				abortWithError(ctx, err)
				return
			}

			doc, err := json.Marshal(snap)
			if err != nil {
				abortWithError(ctx, err)
				return
			}

			res, err := filterDocument(doc, filter)
			if err != nil {
				f.log.With("error", err).Info("failed to filter session document")
				abortWithError(ctx, httperror.Wrap(http.StatusInternalServerError, err))
				return
			}

			ctx.String(http.StatusOK, string(res))
		})
	}
}

// filterDocument runs a gojq filter over a JSON document and renders the
// results one per line. String results are written raw, everything else is
// re-marshalled.
func filterDocument(doc []byte, filter string) ([]byte, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, err
	}

	input := make(map[string]interface{})
	if err := json.Unmarshal(doc, &input); err != nil {
		return nil, err
	}

	var result bytes.Buffer
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}

		if v == nil {
			continue
		}

		switch vv := v.(type) {
		case error:
			return nil, errors.Wrap(vv, "error while filtering with gojq")
		case string:
			result.WriteString(vv)
		default:
			marshalled, err := json.Marshal(vv)
			if err != nil {
				return nil, errors.Wrap(err, "error marshalling jq result")
			}
			result.Write(marshalled)
		}
		result.WriteRune('\n')
	}

	return bytes.TrimSuffix(result.Bytes(), []byte("\n")), nil
}
