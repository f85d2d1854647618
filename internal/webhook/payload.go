package webhook

import (
	"github.com/go-faster/jx"
)

// EventChargeCompleted is the only notification kind that can promote a
// reservation. The gateway sends many other event types; they are
// acknowledged and ignored.
const EventChargeCompleted = "charge.completed"

// notification holds the only fields the reconciler reads from a webhook
// body. Everything else in the payload, including the amount and status the
// gateway embeds, is untrusted and re-fetched from the gateway's verify
// endpoint.
type notification struct {
	Event         string
	TransactionID int64
	TxRef         string
}

// parseNotification extracts the event type and identifiers from the raw
// body. Unknown fields are skipped; a body that is not a JSON object is an
// error the caller treats as a malformed (acknowledged, unretried) delivery.
func parseNotification(body []byte) (notification, error) {
	var n notification
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "event":
			v, err := d.Str()
			if err != nil {
				return err
			}
			n.Event = v
			return nil
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "id":
					v, err := d.Int64()
					if err != nil {
						return err
					}
					n.TransactionID = v
					return nil
				case "tx_ref":
					v, err := d.Str()
					if err != nil {
						return err
					}
					n.TxRef = v
					return nil
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	return n, err
}
