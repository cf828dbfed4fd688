// aggregator.go implements the resource aggregation layer on top of the proxy
// gateway. Listings fetch the full upstream collection, then filter and
// paginate in memory: the management API's own pagination is inconsistent
// across versions, and collection sizes in practice stay small enough that
// correctness of totals matters more than transfer size.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rabbit-console/rabbit-console/internal/cluster"
)

// Exchange types accepted on creation.
var validExchangeTypes = map[string]bool{
	"direct":  true,
	"fanout":  true,
	"topic":   true,
	"headers": true,
}

// Ack modes accepted by GetMessages, matching the upstream enum exactly.
var validAckModes = map[string]bool{
	"ack_requeue_true":     true,
	"ack_requeue_false":    true,
	"reject_requeue_true":  true,
	"reject_requeue_false": true,
}

// Aggregator composes gateway calls into the console's listing and mutation
// operations. It is stateless; everything cluster-specific arrives via the
// Endpoint on each call.
type Aggregator struct {
	gw *Gateway
}

// NewAggregator creates an Aggregator over gw.
func NewAggregator(gw *Gateway) *Aggregator {
	return &Aggregator{gw: gw}
}

// fetchList performs one GET and decodes the response as a JSON array.
func fetchList[T any](ctx context.Context, gw *Gateway, ep *cluster.Endpoint, path string) ([]T, error) {
	body, err := gw.Do(ctx, ep, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, NewProxyError(KindUpstreamInternal, 0, "failed to decode upstream response", err)
	}
	return items, nil
}

// listPage is the shared fetch-filter-paginate pipeline. The filter and page
// request are validated before the upstream call so invalid input never costs
// a round trip.
func listPage[T any](
	ctx context.Context, gw *Gateway, ep *cluster.Endpoint, path string,
	f Filter, req PageRequest, name func(T) string, vhost func(T) string,
) (*Page[T], error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	items, err := fetchList[T](ctx, gw, ep, path)
	if err != nil {
		return nil, err
	}
	kept, err := applyFilter(items, f, name, vhost)
	if err != nil {
		return nil, err
	}
	page := paginate(kept, req)
	return &page, nil
}

// GetOverview proxies GET /api/overview and returns the raw upstream document.
func (a *Aggregator) GetOverview(ctx context.Context, ep *cluster.Endpoint) (json.RawMessage, error) {
	body, err := a.gw.Do(ctx, ep, http.MethodGet, "/api/overview", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// CheckAlive probes the cluster with a minimal authenticated call. A nil error
// means the cluster is reachable and the stored credentials work.
func (a *Aggregator) CheckAlive(ctx context.Context, ep *cluster.Endpoint) error {
	_, err := a.gw.Do(ctx, ep, http.MethodGet, "/api/whoami", nil)
	return err
}

// ListVHosts returns all vhosts. Vhost listings are not paginated; they gate
// every other scoped listing and are rarely more than a handful.
func (a *Aggregator) ListVHosts(ctx context.Context, ep *cluster.Endpoint) ([]Vhost, error) {
	return fetchList[Vhost](ctx, a.gw, ep, "/api/vhosts")
}

// ListConnections returns one page of connections matching the filter.
func (a *Aggregator) ListConnections(ctx context.Context, ep *cluster.Endpoint, f Filter, req PageRequest) (*Page[Connection], error) {
	return listPage(ctx, a.gw, ep, "/api/connections", f, req,
		func(c Connection) string { return c.Name },
		func(c Connection) string { return c.Vhost },
	)
}

// ListChannels returns one page of channels matching the filter.
func (a *Aggregator) ListChannels(ctx context.Context, ep *cluster.Endpoint, f Filter, req PageRequest) (*Page[Channel], error) {
	return listPage(ctx, a.gw, ep, "/api/channels", f, req,
		func(c Channel) string { return c.Name },
		func(c Channel) string { return c.Vhost },
	)
}

// ListExchanges returns one page of exchanges matching the filter.
func (a *Aggregator) ListExchanges(ctx context.Context, ep *cluster.Endpoint, f Filter, req PageRequest) (*Page[Exchange], error) {
	return listPage(ctx, a.gw, ep, "/api/exchanges", f, req,
		func(e Exchange) string { return e.Name },
		func(e Exchange) string { return e.Vhost },
	)
}

// ListQueues returns one page of queues matching the filter.
func (a *Aggregator) ListQueues(ctx context.Context, ep *cluster.Endpoint, f Filter, req PageRequest) (*Page[Queue], error) {
	return listPage(ctx, a.gw, ep, "/api/queues", f, req,
		func(q Queue) string { return q.Name },
		func(q Queue) string { return q.Vhost },
	)
}

// BindingRole selects which side of a binding the listing is scoped to.
type BindingRole string

const (
	// BindingRoleSource lists bindings where the exchange is the source.
	BindingRoleSource BindingRole = "source"
	// BindingRoleDestination lists bindings where the exchange is the destination.
	BindingRoleDestination BindingRole = "destination"
	// BindingRoleQueue lists bindings into a queue.
	BindingRoleQueue BindingRole = "queue"
)

// ListBindings returns the bindings touching the named exchange or queue.
func (a *Aggregator) ListBindings(ctx context.Context, ep *cluster.Endpoint, vhost, name string, role BindingRole) ([]Binding, error) {
	var path string
	switch role {
	case BindingRoleSource:
		path = fmt.Sprintf("/api/exchanges/%s/%s/bindings/source", escape(vhost), escape(name))
	case BindingRoleDestination:
		path = fmt.Sprintf("/api/exchanges/%s/%s/bindings/destination", escape(vhost), escape(name))
	case BindingRoleQueue:
		path = fmt.Sprintf("/api/queues/%s/%s/bindings", escape(vhost), escape(name))
	default:
		return nil, InvalidInput("binding role must be source, destination, or queue")
	}
	return fetchList[Binding](ctx, a.gw, ep, path)
}

// CreateExchange declares an exchange. The type is validated locally against
// the built-in exchange types.
func (a *Aggregator) CreateExchange(ctx context.Context, ep *cluster.Endpoint, vhost, name string, def ExchangeDefinition) error {
	if !validExchangeTypes[def.Type] {
		return InvalidInput("exchange type must be one of direct, fanout, topic, headers")
	}
	path := fmt.Sprintf("/api/exchanges/%s/%s", escape(vhost), escape(name))
	_, err := a.gw.Do(ctx, ep, http.MethodPut, path, def)
	return err
}

// DeleteExchange removes an exchange. With ifUnused set, the upstream rejects
// the delete when bindings still reference the exchange.
func (a *Aggregator) DeleteExchange(ctx context.Context, ep *cluster.Endpoint, vhost, name string, ifUnused bool) error {
	path := fmt.Sprintf("/api/exchanges/%s/%s", escape(vhost), escape(name))
	if ifUnused {
		path += "?if-unused=true"
	}
	_, err := a.gw.Do(ctx, ep, http.MethodDelete, path, nil)
	return err
}

// CreateQueue declares a queue.
func (a *Aggregator) CreateQueue(ctx context.Context, ep *cluster.Endpoint, vhost, name string, def QueueDefinition) error {
	path := fmt.Sprintf("/api/queues/%s/%s", escape(vhost), escape(name))
	_, err := a.gw.Do(ctx, ep, http.MethodPut, path, def)
	return err
}

// DeleteQueue removes a queue, optionally guarded on consumers and contents.
func (a *Aggregator) DeleteQueue(ctx context.Context, ep *cluster.Endpoint, vhost, name string, ifUnused, ifEmpty bool) error {
	path := fmt.Sprintf("/api/queues/%s/%s", escape(vhost), escape(name))
	q := url.Values{}
	if ifUnused {
		q.Set("if-unused", "true")
	}
	if ifEmpty {
		q.Set("if-empty", "true")
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	_, err := a.gw.Do(ctx, ep, http.MethodDelete, path, nil)
	return err
}

// PurgeQueue drops all ready messages from a queue. Unacknowledged messages
// are untouched.
func (a *Aggregator) PurgeQueue(ctx context.Context, ep *cluster.Endpoint, vhost, name string) error {
	path := fmt.Sprintf("/api/queues/%s/%s/contents", escape(vhost), escape(name))
	_, err := a.gw.Do(ctx, ep, http.MethodDelete, path, nil)
	return err
}

// BindingDestKind selects the destination side of a new binding.
type BindingDestKind string

const (
	// BindToQueue binds an exchange to a queue.
	BindToQueue BindingDestKind = "queue"
	// BindToExchange binds an exchange to another exchange.
	BindToExchange BindingDestKind = "exchange"
)

// CreateBinding binds source to destination in vhost.
func (a *Aggregator) CreateBinding(ctx context.Context, ep *cluster.Endpoint, vhost, source, destination string, kind BindingDestKind, def BindingDefinition) error {
	var seg string
	switch kind {
	case BindToQueue:
		seg = "q"
	case BindToExchange:
		seg = "e"
	default:
		return InvalidInput("binding destination must be queue or exchange")
	}
	path := fmt.Sprintf("/api/bindings/%s/e/%s/%s/%s", escape(vhost), escape(source), seg, escape(destination))
	_, err := a.gw.Do(ctx, ep, http.MethodPost, path, def)
	return err
}

// Publish publishes one message to an exchange and reports whether any queue
// received it. Payload encoding must be string or base64.
func (a *Aggregator) Publish(ctx context.Context, ep *cluster.Endpoint, vhost, exchange string, req PublishRequest) (*PublishResult, error) {
	if req.PayloadEncoding == "" {
		req.PayloadEncoding = "string"
	}
	if req.PayloadEncoding != "string" && req.PayloadEncoding != "base64" {
		return nil, InvalidInput("payload encoding must be string or base64")
	}
	if req.Properties == nil {
		req.Properties = map[string]any{}
	}
	path := fmt.Sprintf("/api/exchanges/%s/%s/publish", escape(vhost), escape(exchange))
	body, err := a.gw.Do(ctx, ep, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}
	var result PublishResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, NewProxyError(KindUpstreamInternal, 0, "failed to decode publish response", err)
	}
	return &result, nil
}

// PublishToQueue publishes via the default exchange with the queue name as the
// routing key, which delivers directly to the named queue.
func (a *Aggregator) PublishToQueue(ctx context.Context, ep *cluster.Endpoint, vhost, queue string, req PublishRequest) (*PublishResult, error) {
	req.RoutingKey = queue
	return a.Publish(ctx, ep, vhost, "amq.default", req)
}

// GetMessages reads up to req.Count messages from a queue under the given ack
// mode. Count and ack mode are validated locally.
func (a *Aggregator) GetMessages(ctx context.Context, ep *cluster.Endpoint, vhost, queue string, req GetMessagesRequest) ([]Message, error) {
	if req.Count < 1 || req.Count > MaxPageSize {
		return nil, InvalidInput(fmt.Sprintf("count must be between 1 and %d", MaxPageSize))
	}
	if !validAckModes[req.AckMode] {
		return nil, InvalidInput("invalid ack mode")
	}
	if req.Encoding == "" {
		req.Encoding = "auto"
	}
	if req.Encoding != "auto" && req.Encoding != "base64" {
		return nil, InvalidInput("encoding must be auto or base64")
	}
	path := fmt.Sprintf("/api/queues/%s/%s/get", escape(vhost), escape(queue))
	body, err := a.gw.Do(ctx, ep, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}
	var messages []Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, NewProxyError(KindUpstreamInternal, 0, "failed to decode messages", err)
	}
	return messages, nil
}

// CreateShovel installs a dynamic shovel parameter that drains the source
// queue into the destination queue. When the shovel plugin is disabled the
// parameters endpoint does not exist; that 404 is remapped to unreachable so
// the caller sees a service problem rather than a missing resource.
func (a *Aggregator) CreateShovel(ctx context.Context, ep *cluster.Endpoint, vhost, name string, def ShovelDefinition) error {
	if def.SourceQueue == "" || def.DestinationQueue == "" {
		return InvalidInput("source and destination queues are required")
	}
	if def.AckMode == "" {
		def.AckMode = "on-confirm"
	}
	if def.SourceDeleteAfter == "" {
		def.SourceDeleteAfter = "queue-length"
	}
	path := fmt.Sprintf("/api/parameters/shovel/%s/%s", escape(vhost), escape(name))
	_, err := a.gw.Do(ctx, ep, http.MethodPut, path, shovelParameter{Value: def})
	if KindOf(err) == KindNotFound {
		return NewProxyError(KindUnreachable, http.StatusNotFound,
			"shovel plugin is not enabled on this cluster", err)
	}
	return err
}

// MoveMessages transfers the contents of one queue into another on the same
// cluster by installing a transient shovel named after the source queue.
func (a *Aggregator) MoveMessages(ctx context.Context, ep *cluster.Endpoint, vhost, source, destination string) error {
	if source == destination {
		return InvalidInput("source and destination queues must differ")
	}
	// amqp:// with no host connects over the local node, which keeps the
	// shovel from needing credentials of its own.
	def := ShovelDefinition{
		SourceURI:        "amqp://",
		SourceQueue:      source,
		DestinationURI:   "amqp://",
		DestinationQueue: destination,
	}
	return a.CreateShovel(ctx, ep, vhost, "Move from "+source, def)
}

// escape path-escapes one URL segment. The default vhost "/" becomes %2F.
func escape(segment string) string {
	return url.PathEscape(segment)
}
