package peer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/overspend1/oversync/pkg/types"
)

// EncodeTicket serializes t as an opaque base64 JSON string, suitable
// for sharing out of band.
func EncodeTicket(t types.Ticket) string {
	data, _ := json.Marshal(t) // a Ticket of strings never fails to marshal
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeTicket parses a string produced by EncodeTicket. It fails with
// types.ErrProtocol if s is not valid base64 JSON or is missing a
// node id.
func DecodeTicket(s string) (types.Ticket, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return types.Ticket{}, fmt.Errorf("%w: decode ticket: %v", types.ErrProtocol, err)
	}
	var t types.Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return types.Ticket{}, fmt.Errorf("%w: parse ticket: %v", types.ErrProtocol, err)
	}
	if t.NodeID == "" {
		return types.Ticket{}, fmt.Errorf("%w: ticket missing node id", types.ErrProtocol)
	}
	return t, nil
}
