// internal/model/subscriber.go
package model

// OperationKind names the list mutation a request or queue entry refers to.
type OperationKind string

const (
	OpSubscribe   OperationKind = "subscribe"
	OpUnsubscribe OperationKind = "unsubscribe"
	OpUpdate      OperationKind = "update"
)

var OperationKinds = []OperationKind{OpSubscribe, OpUnsubscribe, OpUpdate}

type Subscriber struct {
	Address string            `json:"email"`
	Info    map[string]string `json:"info,omitempty"`
}

// FieldMap renames tenant info keys to provider field names.
type FieldMap map[string]string

// Apply returns a copy of info with keys renamed through the map.
// Keys without a mapping are kept as-is.
func (m FieldMap) Apply(info map[string]string) map[string]string {
	if info == nil {
		return nil
	}
	out := make(map[string]string, len(info))
	for k, v := range info {
		if mapped, ok := m[k]; ok && mapped != "" {
			k = mapped
		}
		out[k] = v
	}
	return out
}
