// types.go mirrors the JSON shapes of the RabbitMQ Management HTTP API for the
// collections the console aggregates. Only the fields the UI consumes are
// decoded; unknown upstream fields are ignored by encoding/json.
package rabbit

// Connection is one entry from GET /api/connections.
type Connection struct {
	Name     string `json:"name"`
	Vhost    string `json:"vhost"`
	User     string `json:"user"`
	Node     string `json:"node"`
	State    string `json:"state"`
	Channels int    `json:"channels"`
	Protocol string `json:"protocol"`
	PeerHost string `json:"peer_host"`
	PeerPort int    `json:"peer_port"`
	SSL      bool   `json:"ssl"`
	// ConnectedAt is milliseconds since epoch, as the upstream reports it.
	ConnectedAt int64 `json:"connected_at"`
}

// Channel is one entry from GET /api/channels.
type Channel struct {
	Name          string `json:"name"`
	Vhost         string `json:"vhost"`
	User          string `json:"user"`
	Node          string `json:"node"`
	State         string `json:"state"`
	Number        int    `json:"number"`
	ConsumerCount int    `json:"consumer_count"`
	MessagesUnack int    `json:"messages_unacknowledged"`
	PrefetchCount int    `json:"prefetch_count"`
	Transactional bool   `json:"transactional"`

	ConnectionDetails struct {
		Name     string `json:"name"`
		PeerHost string `json:"peer_host"`
	} `json:"connection_details"`
}

// Exchange is one entry from GET /api/exchanges.
type Exchange struct {
	Name       string         `json:"name"`
	Vhost      string         `json:"vhost"`
	Type       string         `json:"type"`
	Durable    bool           `json:"durable"`
	AutoDelete bool           `json:"auto_delete"`
	Internal   bool           `json:"internal"`
	Arguments  map[string]any `json:"arguments"`
}

// Queue is one entry from GET /api/queues.
type Queue struct {
	Name          string         `json:"name"`
	Vhost         string         `json:"vhost"`
	State         string         `json:"state"`
	Durable       bool           `json:"durable"`
	AutoDelete    bool           `json:"auto_delete"`
	Exclusive     bool           `json:"exclusive"`
	Node          string         `json:"node"`
	Arguments     map[string]any `json:"arguments"`
	Consumers     int            `json:"consumers"`
	Messages      int            `json:"messages"`
	MessagesReady int            `json:"messages_ready"`
	MessagesUnack int            `json:"messages_unacknowledged"`
}

// Binding is a routing rule scoped to (cluster, vhost, source). Bindings are
// not independently addressable in the upstream API.
type Binding struct {
	Source          string         `json:"source"`
	Destination     string         `json:"destination"`
	DestinationType string         `json:"destination_type"`
	RoutingKey      string         `json:"routing_key"`
	Vhost           string         `json:"vhost"`
	PropertiesKey   string         `json:"properties_key"`
	Arguments       map[string]any `json:"arguments"`
}

// Vhost is one entry from GET /api/vhosts.
type Vhost struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tracing     bool   `json:"tracing"`
}

// Message is one entry returned by POST /api/queues/{vhost}/{name}/get.
type Message struct {
	Payload         string         `json:"payload"`
	PayloadBytes    int            `json:"payload_bytes"`
	PayloadEncoding string         `json:"payload_encoding"`
	Exchange        string         `json:"exchange"`
	RoutingKey      string         `json:"routing_key"`
	Redelivered     bool           `json:"redelivered"`
	MessageCount    int            `json:"message_count"`
	Properties      map[string]any `json:"properties"`
}

// PublishResult is the upstream response to POST .../publish.
type PublishResult struct {
	Routed bool `json:"routed"`
}

// ExchangeDefinition is the body for PUT /api/exchanges/{vhost}/{name}.
type ExchangeDefinition struct {
	Type       string         `json:"type"`
	Durable    bool           `json:"durable"`
	AutoDelete bool           `json:"auto_delete"`
	Internal   bool           `json:"internal"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// QueueDefinition is the body for PUT /api/queues/{vhost}/{name}.
type QueueDefinition struct {
	Durable    bool           `json:"durable"`
	AutoDelete bool           `json:"auto_delete"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// BindingDefinition is the body for POST /api/bindings/{vhost}/e/{source}/{q|e}/{destination}.
type BindingDefinition struct {
	RoutingKey string         `json:"routing_key"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// PublishRequest is the body for POST /api/exchanges/{vhost}/{name}/publish.
type PublishRequest struct {
	Properties      map[string]any `json:"properties"`
	RoutingKey      string         `json:"routing_key"`
	Payload         string         `json:"payload"`
	PayloadEncoding string         `json:"payload_encoding"`
}

// GetMessagesRequest is the body for POST /api/queues/{vhost}/{name}/get.
type GetMessagesRequest struct {
	Count    int    `json:"count"`
	AckMode  string `json:"ackmode"`
	Encoding string `json:"encoding"`
	Truncate int    `json:"truncate,omitempty"`
}

// ShovelDefinition describes a queue-to-queue transfer job. It is wrapped in a
// parameter envelope and sent to PUT /api/parameters/shovel/{vhost}/{name}.
type ShovelDefinition struct {
	SourceURI         string `json:"src-uri"`
	SourceQueue       string `json:"src-queue"`
	DestinationURI    string `json:"dest-uri"`
	DestinationQueue  string `json:"dest-queue"`
	AckMode           string `json:"ack-mode,omitempty"`
	SourceDeleteAfter string `json:"src-delete-after,omitempty"`
}

// shovelParameter is the envelope the parameters endpoint expects.
type shovelParameter struct {
	Value ShovelDefinition `json:"value"`
}

// upstreamError is the structured error body most management API versions
// return: {"error": "not_found", "reason": "..."}.
type upstreamError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}
