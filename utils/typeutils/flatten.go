package typeutils

import (
	"fmt"
	"reflect"
	"time"

	"github.com/goccy/go-json"
)

// Flattener turns one decoded JSON object into a flat row of table cells.
type Flattener interface {
	Flatten(row map[string]any) (map[string]any, error)
}

type FlattenerImpl struct {
	omitNilValues bool
}

func NewFlattener() Flattener {
	return &FlattenerImpl{
		omitNilValues: true,
	}
}

func (f *FlattenerImpl) Flatten(row map[string]any) (map[string]any, error) {
	destination := make(map[string]any, len(row))

	for key, value := range row {
		err := f.flatten(key, value, destination)
		if err != nil {
			return nil, err
		}
	}

	return destination, nil
}

func (f *FlattenerImpl) flatten(key string, value any, destination map[string]any) error {
	t := reflect.ValueOf(value)
	switch t.Kind() {
	case reflect.Slice: // Stringify arrays
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("error marshaling array with key %s: %v", key, err)
		}
		destination[key] = string(b)
	case reflect.Map: // nested objects become dotted columns
		for _, k := range t.MapKeys() {
			if err := f.flatten(fmt.Sprintf("%s.%v", key, k.Interface()), t.MapIndex(k).Interface(), destination); err != nil {
				return err
			}
		}
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		destination[key] = value
	default:
		if !f.omitNilValues || value != nil {
			if tm, ok := value.(time.Time); ok {
				destination[key] = tm
			} else if value == nil {
				destination[key] = nil
			} else {
				destination[key] = fmt.Sprint(value)
			}
		}
	}

	return nil
}
