package cache

import (
	"errors"
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errMalformedPayload = errors.New("malformed json payload")

func encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// decode unmarshals payload into a fresh value of into's element type and assigns it to into
// only when decoding fully succeeds, so into is never left partially populated.
func decode(payload []byte, into any) error {
	if err := checkTarget(into); err != nil {
		return err
	}

	if !json.Valid(payload) {
		return errMalformedPayload
	}

	rv := reflect.ValueOf(into)
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(payload, fresh.Interface()); err != nil {
		return err
	}

	rv.Elem().Set(fresh.Elem())
	return nil
}

func checkTarget(into any) error {
	rv := reflect.ValueOf(into)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w, got %T", ErrInvalidTarget, into)
	}
	return nil
}
