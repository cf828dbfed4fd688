// Package models defines the persistent data model for the console: registered
// clusters, console users, and audit records.
package models

import "time"

// Cluster represents a registered RabbitMQ cluster: where its management API
// lives and which credentials to use against it. PasswordEncrypted holds the
// AES-GCM sealed management password; the plaintext exists in memory only
// inside the credential resolver and the proxy gateway for the duration of one
// call, and is never serialized into API responses.
type Cluster struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	APIURL            string    `json:"apiUrl"`
	Username          string    `json:"username"`
	PasswordEncrypted string    `json:"-"`
	Description       string    `json:"description"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`

	// AssignedUserIDs lists users allowed to act on this cluster. Populated
	// only by repository methods that join cluster_users.
	AssignedUserIDs []string `json:"assignedUserIds,omitempty"`
}
