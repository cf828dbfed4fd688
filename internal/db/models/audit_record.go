package models

import "time"

// Audit operation types. The set is closed: every mutating operation the
// console can relay maps to exactly one of these values.
const (
	OpCreateExchange         = "CREATE_EXCHANGE"
	OpDeleteExchange         = "DELETE_EXCHANGE"
	OpCreateQueue            = "CREATE_QUEUE"
	OpDeleteQueue            = "DELETE_QUEUE"
	OpPurgeQueue             = "PURGE_QUEUE"
	OpCreateBindingQueue     = "CREATE_BINDING_QUEUE"
	OpCreateBindingExchange  = "CREATE_BINDING_EXCHANGE"
	OpPublishMessageExchange = "PUBLISH_MESSAGE_EXCHANGE"
	OpPublishMessageQueue    = "PUBLISH_MESSAGE_QUEUE"
	OpMoveMessagesQueue      = "MOVE_MESSAGES_QUEUE"
)

// Audit outcome statuses.
const (
	AuditStatusSuccess = "SUCCESS"
	AuditStatusFailure = "FAILURE"
)

// ValidOperation reports whether op is a member of the closed operation set.
func ValidOperation(op string) bool {
	switch op {
	case OpCreateExchange, OpDeleteExchange, OpCreateQueue, OpDeleteQueue,
		OpPurgeQueue, OpCreateBindingQueue, OpCreateBindingExchange,
		OpPublishMessageExchange, OpPublishMessageQueue, OpMoveMessagesQueue:
		return true
	}
	return false
}

// AuditRecord is one immutable entry in the write trail. There is no update or
// delete path for individual records anywhere in the codebase; rows leave the
// table only through the retention sweep.
type AuditRecord struct {
	ID           string    `json:"id"`
	OccurredAt   time.Time `json:"occurredAt"`
	Username     string    `json:"username"`
	ClusterID    *string   `json:"clusterId,omitempty"` // nullable: cluster may be gone
	ClusterName  string    `json:"clusterName"`
	Operation    string    `json:"operation"`
	ResourceType string    `json:"resourceType"`
	ResourceName string    `json:"resourceName"`
	Vhost        string    `json:"vhost"`
	Status       string    `json:"status"`
	Description  string    `json:"description"`
	ClientIP     *string   `json:"clientIp,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
