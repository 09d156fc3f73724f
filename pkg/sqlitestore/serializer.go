package sqlitestore

import "encoding/json"

// Serializer converts session values to and from their stored form
type Serializer interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JSONSerializer is the default Serializer. Decoded objects come back as
// map[string]any and numbers as float64.
type JSONSerializer struct{}

// Encode marshals value to JSON
func (JSONSerializer) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode unmarshals a JSON payload into a generic value
func (JSONSerializer) Decode(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
