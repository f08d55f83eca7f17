package trigger

import "fmt"

// flatten turns a decoded payload into single-level keys under prefix,
// joining nested keys with "." so filter expressions can reference payload
// fields as bare paths (body.pull_request.draft). Arrays get both an
// indexed form (a[0].b) and the whole slice under the bare key.
func flatten(prefix string, data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		flattenInto(out, path, value)
	}
	return out
}

func flattenInto(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			flattenInto(out, path+"."+key, child)
		}
	case []interface{}:
		out[path] = typed
		for i, child := range typed {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		out[path] = value
	}
}
