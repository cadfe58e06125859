package entity

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Decode copies the entity into the struct pointed to by out. Fields match
// `db` tags, falling back to case-insensitive field names. Nested entities
// decode into nested structs or slices of structs; strings holding RFC 3339
// times decode into time.Time.
func Decode(e *Entity, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "db",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(e.ToMap())
}

// DecodeAll decodes every entity into a new slice element.
func DecodeAll[T any](entities []*Entity) ([]T, error) {
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		var v T
		if err := Decode(e, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
