// Package cluster resolves a cluster id into the connection coordinates the
// proxy gateway needs: base URL plus decrypted credentials. Resolution reads
// the cluster repository on every call, with no caching, so a credential
// rotation takes effect on the next request while in-flight calls keep the
// endpoint they resolved at call start.
package cluster

import (
	"context"
	"errors"

	"github.com/rabbit-console/rabbit-console/internal/crypto"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
)

var (
	// ErrClusterNotFound is returned when no cluster with the given id exists.
	ErrClusterNotFound = errors.New("cluster: not found")
	// ErrClusterInactive is returned when the cluster exists but has been deactivated.
	ErrClusterInactive = errors.New("cluster: inactive")
)

// Endpoint carries everything one upstream call needs. Password is plaintext;
// an Endpoint must never be logged, stored, or serialized, and must not
// outlive the call it was resolved for.
type Endpoint struct {
	ClusterID   string
	ClusterName string
	BaseURL     string
	Username    string
	Password    string
}

// Resolver resolves cluster ids to endpoints.
type Resolver struct {
	clusters *repositories.ClusterRepository
	cipher   *crypto.CredentialCipher
}

// NewResolver creates a Resolver.
func NewResolver(clusters *repositories.ClusterRepository, cipher *crypto.CredentialCipher) *Resolver {
	return &Resolver{clusters: clusters, cipher: cipher}
}

// Resolve returns the endpoint for clusterID. Inactive clusters resolve to
// ErrClusterInactive so callers can distinguish "gone" from "switched off".
func (r *Resolver) Resolve(ctx context.Context, clusterID string) (*Endpoint, error) {
	c, err := r.clusters.GetByID(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrClusterNotFound
	}
	if !c.Active {
		return nil, ErrClusterInactive
	}

	password, err := r.cipher.Open(c.PasswordEncrypted)
	if err != nil {
		return nil, err
	}

	return &Endpoint{
		ClusterID:   c.ID,
		ClusterName: c.Name,
		BaseURL:     c.APIURL,
		Username:    c.Username,
		Password:    password,
	}, nil
}
