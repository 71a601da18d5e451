// Package canonical produces the byte-exact JSON form that request
// signatures are computed over: object keys sorted bytewise at every depth,
// no insignificant whitespace, numbers kept as written and strings without
// HTML or non-ASCII escaping.
package canonical

import (
	"encoding/json"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Marshal encodes v with encoding/json and canonicalizes the result.
// json.RawMessage and []byte holding JSON are canonicalized directly.
func Marshal(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "marshal payload")
		}
		raw = b
	}
	return Canonicalize(raw)
}

// Canonicalize rewrites a single JSON document into canonical form.
func Canonicalize(raw []byte) ([]byte, error) {
	d := jx.DecodeBytes(raw)
	e := &jx.Encoder{}
	if err := encodeValue(d, e); err != nil {
		return nil, err
	}
	if d.Next() != jx.Invalid {
		return nil, errors.New("trailing data after JSON value")
	}
	return e.Bytes(), nil
}

type field struct {
	key   string
	value jx.Raw
}

func encodeValue(d *jx.Decoder, e *jx.Encoder) error {
	switch tt := d.Next(); tt {
	case jx.Object:
		var fields []field
		seen := make(map[string]struct{})
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			if _, dup := seen[key]; dup {
				return errors.Errorf("duplicate key %q", key)
			}
			seen[key] = struct{}{}
			v, err := d.RawAppend(nil)
			if err != nil {
				return errors.Wrapf(err, "read %q", key)
			}
			fields = append(fields, field{key: key, value: v})
			return nil
		}); err != nil {
			return errors.Wrap(err, "object")
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].key < fields[j].key })

		e.ObjStart()
		for _, f := range fields {
			e.FieldStart(f.key)
			if err := encodeValue(jx.DecodeBytes(f.value), e); err != nil {
				return err
			}
		}
		e.ObjEnd()
		return nil

	case jx.Array:
		e.ArrStart()
		if err := d.Arr(func(d *jx.Decoder) error {
			return encodeValue(d, e)
		}); err != nil {
			return errors.Wrap(err, "array")
		}
		e.ArrEnd()
		return nil

	case jx.String:
		s, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "string")
		}
		e.Str(s)
		return nil

	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return errors.Wrap(err, "number")
		}
		e.Num(n)
		return nil

	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return errors.Wrap(err, "bool")
		}
		e.Bool(b)
		return nil

	case jx.Null:
		if err := d.Null(); err != nil {
			return errors.Wrap(err, "null")
		}
		e.Null()
		return nil

	default:
		return errors.Errorf("unexpected JSON token %s", tt)
	}
}
