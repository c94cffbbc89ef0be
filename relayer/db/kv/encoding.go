package kv

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// Records are stored as JSON. The lifecycle engine relies on the round trip
// being the identity on the data model, so no compression or field pruning
// happens here.
func decode(data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, "could not decode record")
	}
	return nil
}

func encode(msg interface{}) ([]byte, error) {
	if msg == nil || (reflect.ValueOf(msg).Kind() == reflect.Ptr && reflect.ValueOf(msg).IsNil()) {
		return nil, errors.New("cannot encode nil record")
	}
	enc, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode record")
	}
	return enc, nil
}
