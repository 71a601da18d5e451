package batch

import (
	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

var ErrMalformedCallback = errors.New("malformed bulk callback")

// RawItem is a decoded callback item together with its original bytes,
// which go into the audit log unchanged.
type RawItem struct {
	Item api.CallbackItem
	Raw  []byte
}

// DecodeCallback reads a JSON array of callback items. A single object is
// accepted as a batch of one. Scalar fields may arrive as strings or numbers.
func DecodeCallback(raw []byte) ([]RawItem, error) {
	d := jx.DecodeBytes(raw)

	var items []RawItem
	switch d.Next() {
	case jx.Array:
		if err := d.Arr(func(d *jx.Decoder) error {
			it, err := decodeRawItem(d)
			if err != nil {
				return err
			}
			items = append(items, it)
			return nil
		}); err != nil {
			return nil, errors.Wrapf(ErrMalformedCallback, "%v", err)
		}
	case jx.Object:
		it, err := decodeRawItem(d)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedCallback, "%v", err)
		}
		items = append(items, it)
	default:
		return nil, errors.Wrap(ErrMalformedCallback, "expected an array of items")
	}

	if d.Next() != jx.Invalid {
		return nil, errors.Wrap(ErrMalformedCallback, "trailing data after callback batch")
	}
	return items, nil
}

func decodeRawItem(d *jx.Decoder) (RawItem, error) {
	raw, err := d.RawAppend(nil)
	if err != nil {
		return RawItem{}, err
	}

	var it api.CallbackItem
	err = jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		v, err := scalar(d)
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		switch key {
		case "conversationId":
			it.ConversationID = v
		case "documentNumber":
			it.DocumentNumber = v
		case "status":
			it.Status = v
		case "irn":
			it.Irn = v
		case "signedInvoice":
			it.SignedInvoice = v
		case "signedQR":
			it.SignedQR = v
		case "ackDate":
			it.AckDate = v
		}
		return nil
	})
	if err != nil {
		return RawItem{}, err
	}
	return RawItem{Item: it, Raw: raw}, nil
}

// scalar reads a string, number or null; nested values are skipped.
func scalar(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	case jx.Bool:
		b, err := d.Bool()
		if b {
			return "true", err
		}
		return "false", err
	}
	return "", d.Skip()
}
