package fetchstore

import (
	"encoding/json"
	"mime"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeFunc turns a successful response body into a value of type T.
//
// contentType is the response Content-Type header, verbatim (possibly empty).
type DecodeFunc[T any] func(contentType string, body []byte) (T, error)

// yamlMediaTypes are decoded as YAML by [DecodeBody]; everything else is JSON.
var yamlMediaTypes = map[string]struct{}{
	"application/yaml":   {},
	"application/x-yaml": {},
	"text/yaml":          {},
	"text/x-yaml":        {},
}

// DecodeBody is the default [DecodeFunc].
//
// Bodies with a YAML media type are decoded with gopkg.in/yaml.v3; all other
// bodies, including those with no Content-Type, are decoded as JSON. An empty
// body is an error.
func DecodeBody[T any](contentType string, body []byte) (T, error) {
	var out T

	if isYAML(contentType) {
		// yaml.v3 accepts an empty document silently
		if len(strings.TrimSpace(string(body))) == 0 {
			return out, errEmptyBody
		}
		if err := yaml.Unmarshal(body, &out); err != nil {
			return out, err
		}
		return out, nil
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, err
	}
	return out, nil
}

func isYAML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := yamlMediaTypes[strings.ToLower(mediaType)]
	return ok
}
