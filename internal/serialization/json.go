package serialization

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// JSONCodec implements Codec with encoding/json. Decoding yields generic
// values (maps, slices, float64), so types and shared references are not
// restored. It suits stores that are read by other tools.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (JSONCodec) Check(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	if !v.CanInterface() {
		return fmt.Errorf("json: value of type %s is not accessible", v.Type())
	}
	_, err := json.Marshal(v.Interface())
	return err
}

// Describe accepts every type; JSON does not record types.
func (JSONCodec) Describe(reflect.Type) error { return nil }

func (JSONCodec) Name() string { return string(JSON) }
