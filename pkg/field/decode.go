package field

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/chmenegatti/multiselect/pkg/record"
)

// decode turns stored JSON text into Go values. Values that are already
// decoded lists or objects are cast, not decoded. Text that is not JSON
// decodes to nil.
func decode(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return decodeJSON([]byte(v))
	case []byte:
		return decodeJSON(v)
	case json.RawMessage:
		return decodeJSON(v)
	case []any, map[string]any:
		return v, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot cast map keyed by %s", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	// Scalars decode to themselves, as a JSON number or boolean would.
	return value, nil
}

func decodeJSON(data []byte) (any, error) {
	v, err := record.DecodeJSON(data)
	if err != nil {
		return nil, nil
	}
	return v, nil
}
