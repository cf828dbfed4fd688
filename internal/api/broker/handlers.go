// Package broker implements the cluster-scoped HTTP handlers: listings,
// topology mutations, message operations, and shovel installation, all relayed
// through the proxy gateway. Every mutating handler runs inside the audit
// recorder so the write trail stays complete.
package broker

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rabbit-console/rabbit-console/internal/audit"
	"github.com/rabbit-console/rabbit-console/internal/cluster"
	"github.com/rabbit-console/rabbit-console/internal/db/models"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
	"github.com/rabbit-console/rabbit-console/internal/middleware"
	"github.com/rabbit-console/rabbit-console/internal/rabbit"
)

// Handlers holds the collaborators shared by all cluster-scoped endpoints.
type Handlers struct {
	resolver    *cluster.Resolver
	agg         *rabbit.Aggregator
	recorder    *audit.Recorder
	clusterRepo *repositories.ClusterRepository
}

// NewHandlers creates the broker handler set.
func NewHandlers(resolver *cluster.Resolver, agg *rabbit.Aggregator, recorder *audit.Recorder, clusterRepo *repositories.ClusterRepository) *Handlers {
	return &Handlers{resolver: resolver, agg: agg, recorder: recorder, clusterRepo: clusterRepo}
}

// resolve turns the :id path param into an endpoint, writing the error
// response itself when resolution fails. Non-admin callers must be assigned
// to the cluster; admins may act on any cluster. Callers stop on nil.
func (h *Handlers) resolve(c *gin.Context) *cluster.Endpoint {
	id := c.Param("id")
	if !c.GetBool(middleware.IsAdminKey) {
		assigned, err := h.clusterRepo.IsUserAssigned(c.Request.Context(), id, c.GetString(middleware.UserIDKey))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve cluster"})
			return nil
		}
		if !assigned {
			c.JSON(http.StatusForbidden, gin.H{"error": "not assigned to this cluster"})
			return nil
		}
	}

	ep, err := h.resolver.Resolve(c.Request.Context(), id)
	if err == nil {
		return ep
	}
	switch {
	case errors.Is(err, cluster.ErrClusterNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
	case errors.Is(err, cluster.ErrClusterInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "cluster is deactivated"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve cluster"})
	}
	return nil
}

// proxyError translates a classified gateway error into the response body.
func proxyError(c *gin.Context, err error) {
	status := rabbit.MapStatus(err)
	var perr *rabbit.ProxyError
	if errors.As(err, &perr) {
		c.JSON(status, gin.H{"error": perr.Reason, "kind": string(perr.Kind)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseListing reads the shared filter and pagination query params. Absent
// pagination params keep their defaults; present but non-numeric values are
// rejected here, before the cluster is contacted.
func parseListing(c *gin.Context) (rabbit.Filter, rabbit.PageRequest, bool) {
	var req rabbit.PageRequest
	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &req.Page}, {"pageSize", &req.PageSize}} {
		raw, ok := c.GetQuery(q.name)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			proxyError(c, rabbit.InvalidInput(q.name+" must be an integer"))
			return rabbit.Filter{}, rabbit.PageRequest{}, false
		}
		*q.dst = n
	}
	return rabbit.Filter{
		Name:     c.Query("name"),
		UseRegex: c.Query("useRegex") == "true",
		Vhost:    c.Query("vhost"),
	}, req, true
}

// entry builds the audit entry skeleton for a mutation on the resolved cluster.
func (h *Handlers) entry(c *gin.Context, ep *cluster.Endpoint, operation, resourceType, resourceName, vhost string) audit.Entry {
	return audit.Entry{
		Username:     c.GetString(middleware.UsernameKey),
		ClusterID:    ep.ClusterID,
		ClusterName:  ep.ClusterName,
		Operation:    operation,
		ResourceType: resourceType,
		ResourceName: resourceName,
		Vhost:        vhost,
		ClientIP:     c.ClientIP(),
	}
}

// GetOverviewHandler proxies the cluster overview document.
// GET /api/v1/clusters/:id/overview
func (h *Handlers) GetOverviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		overview, err := h.agg.GetOverview(c.Request.Context(), ep)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json", overview)
	}
}

// CheckHandler reports whether the cluster is reachable with its stored
// credentials.
// GET /api/v1/clusters/:id/check
func (h *Handlers) CheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		if err := h.agg.CheckAlive(c.Request.Context(), ep); err != nil {
			status := rabbit.MapStatus(err)
			var perr *rabbit.ProxyError
			reason := err.Error()
			if errors.As(err, &perr) {
				reason = perr.Reason
			}
			c.JSON(http.StatusOK, gin.H{
				"ok":     false,
				"status": status,
				"error":  reason,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ListVHostsHandler lists the cluster's vhosts.
// GET /api/v1/clusters/:id/vhosts
func (h *Handlers) ListVHostsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		vhosts, err := h.agg.ListVHosts(c.Request.Context(), ep)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": vhosts})
	}
}

// ListConnectionsHandler lists connections with filter and pagination.
// GET /api/v1/clusters/:id/connections
func (h *Handlers) ListConnectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		filter, req, ok := parseListing(c)
		if !ok {
			return
		}
		page, err := h.agg.ListConnections(c.Request.Context(), ep, filter, req)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListChannelsHandler lists channels with filter and pagination.
// GET /api/v1/clusters/:id/channels
func (h *Handlers) ListChannelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		filter, req, ok := parseListing(c)
		if !ok {
			return
		}
		page, err := h.agg.ListChannels(c.Request.Context(), ep, filter, req)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListExchangesHandler lists exchanges with filter and pagination.
// GET /api/v1/clusters/:id/exchanges
func (h *Handlers) ListExchangesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		filter, req, ok := parseListing(c)
		if !ok {
			return
		}
		page, err := h.agg.ListExchanges(c.Request.Context(), ep, filter, req)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListQueuesHandler lists queues with filter and pagination.
// GET /api/v1/clusters/:id/queues
func (h *Handlers) ListQueuesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		filter, req, ok := parseListing(c)
		if !ok {
			return
		}
		page, err := h.agg.ListQueues(c.Request.Context(), ep, filter, req)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// ListExchangeBindingsHandler lists bindings for an exchange as source or
// destination.
// GET /api/v1/clusters/:id/exchanges/:vhost/:name/bindings/:role
func (h *Handlers) ListExchangeBindingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		role := rabbit.BindingRole(c.Param("role"))
		if role != rabbit.BindingRoleSource && role != rabbit.BindingRoleDestination {
			c.JSON(http.StatusBadRequest, gin.H{"error": "binding role must be source or destination"})
			return
		}
		bindings, err := h.agg.ListBindings(c.Request.Context(), ep, c.Param("vhost"), c.Param("name"), role)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": bindings})
	}
}

// ListQueueBindingsHandler lists bindings into a queue.
// GET /api/v1/clusters/:id/queues/:vhost/:name/bindings
func (h *Handlers) ListQueueBindingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		bindings, err := h.agg.ListBindings(c.Request.Context(), ep, c.Param("vhost"), c.Param("name"), rabbit.BindingRoleQueue)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": bindings})
	}
}

// CreateExchangeHandler declares an exchange.
// PUT /api/v1/clusters/:id/exchanges/:vhost/:name
func (h *Handlers) CreateExchangeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		var def rabbit.ExchangeDefinition
		if err := c.ShouldBindJSON(&def); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		vhost, name := c.Param("vhost"), c.Param("name")

		err := h.recorder.Do(c.Request.Context(),
			h.entry(c, ep, models.OpCreateExchange, "exchange", name, vhost),
			func() error {
				return h.agg.CreateExchange(c.Request.Context(), ep, vhost, name, def)
			})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "exchange created"})
	}
}

// DeleteExchangeHandler removes an exchange.
// DELETE /api/v1/clusters/:id/exchanges/:vhost/:name?ifUnused=
func (h *Handlers) DeleteExchangeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		vhost, name := c.Param("vhost"), c.Param("name")
		ifUnused := c.Query("ifUnused") == "true"

		err := h.recorder.Do(c.Request.Context(),
			h.entry(c, ep, models.OpDeleteExchange, "exchange", name, vhost),
			func() error {
				return h.agg.DeleteExchange(c.Request.Context(), ep, vhost, name, ifUnused)
			})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "exchange deleted"})
	}
}

// CreateQueueHandler declares a queue.
// PUT /api/v1/clusters/:id/queues/:vhost/:name
func (h *Handlers) CreateQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		var def rabbit.QueueDefinition
		if err := c.ShouldBindJSON(&def); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		vhost, name := c.Param("vhost"), c.Param("name")

		err := h.recorder.Do(c.Request.Context(),
			h.entry(c, ep, models.OpCreateQueue, "queue", name, vhost),
			func() error {
				return h.agg.CreateQueue(c.Request.Context(), ep, vhost, name, def)
			})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "queue created"})
	}
}

// DeleteQueueHandler removes a queue.
// DELETE /api/v1/clusters/:id/queues/:vhost/:name?ifUnused=&ifEmpty=
func (h *Handlers) DeleteQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		vhost, name := c.Param("vhost"), c.Param("name")
		ifUnused := c.Query("ifUnused") == "true"
		ifEmpty := c.Query("ifEmpty") == "true"

		err := h.recorder.Do(c.Request.Context(),
			h.entry(c, ep, models.OpDeleteQueue, "queue", name, vhost),
			func() error {
				return h.agg.DeleteQueue(c.Request.Context(), ep, vhost, name, ifUnused, ifEmpty)
			})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "queue deleted"})
	}
}

// PurgeQueueHandler drops all ready messages from a queue.
// POST /api/v1/clusters/:id/queues/:vhost/:name/purge
func (h *Handlers) PurgeQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		vhost, name := c.Param("vhost"), c.Param("name")

		err := h.recorder.Do(c.Request.Context(),
			h.entry(c, ep, models.OpPurgeQueue, "queue", name, vhost),
			func() error {
				return h.agg.PurgeQueue(c.Request.Context(), ep, vhost, name)
			})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "queue purged"})
	}
}

// CreateBindingRequest is the body for the binding creation endpoint.
type CreateBindingRequest struct {
	Destination     string         `json:"destination" binding:"required"`
	DestinationType string         `json:"destinationType" binding:"required"`
	RoutingKey      string         `json:"routingKey"`
	Arguments       map[string]any `json:"arguments"`
}

// CreateBindingHandler binds the exchange to a queue or another exchange.
// POST /api/v1/clusters/:id/exchanges/:vhost/:name/bindings
func (h *Handlers) CreateBindingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		var req CreateBindingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		vhost, source := c.Param("vhost"), c.Param("name")

		var kind rabbit.BindingDestKind
		var operation string
		switch req.DestinationType {
		case "queue":
			kind, operation = rabbit.BindToQueue, models.OpCreateBindingQueue
		case "exchange":
			kind, operation = rabbit.BindToExchange, models.OpCreateBindingExchange
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "destinationType must be queue or exchange"})
			return
		}

		entry := h.entry(c, ep, operation, "binding", source+" -> "+req.Destination, vhost)
		err := h.recorder.Do(c.Request.Context(), entry, func() error {
			return h.agg.CreateBinding(c.Request.Context(), ep, vhost, source, req.Destination, kind,
				rabbit.BindingDefinition{RoutingKey: req.RoutingKey, Arguments: req.Arguments})
		})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "binding created"})
	}
}

// PublishHandler publishes a message to an exchange.
// POST /api/v1/clusters/:id/exchanges/:vhost/:name/publish
func (h *Handlers) PublishHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		var req rabbit.PublishRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		vhost, name := c.Param("vhost"), c.Param("name")

		var result *rabbit.PublishResult
		err := h.recorder.Do(c.Request.Context(),
			h.entry(c, ep, models.OpPublishMessageExchange, "exchange", name, vhost),
			func() error {
				var perr error
				result, perr = h.agg.Publish(c.Request.Context(), ep, vhost, name, req)
				return perr
			})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// PublishToQueueHandler publishes directly to a queue via the default
// exchange.
// POST /api/v1/clusters/:id/queues/:vhost/:name/publish
func (h *Handlers) PublishToQueueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		var req rabbit.PublishRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		vhost, name := c.Param("vhost"), c.Param("name")

		var result *rabbit.PublishResult
		err := h.recorder.Do(c.Request.Context(),
			h.entry(c, ep, models.OpPublishMessageQueue, "queue", name, vhost),
			func() error {
				var perr error
				result, perr = h.agg.PublishToQueue(c.Request.Context(), ep, vhost, name, req)
				return perr
			})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetMessagesHandler reads messages from a queue.
// POST /api/v1/clusters/:id/queues/:vhost/:name/get
func (h *Handlers) GetMessagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		var req rabbit.GetMessagesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		messages, err := h.agg.GetMessages(c.Request.Context(), ep, c.Param("vhost"), c.Param("name"), req)
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": messages})
	}
}

// MoveMessagesRequest is the body for the shovel installation endpoint.
type MoveMessagesRequest struct {
	SourceQueue      string `json:"sourceQueue" binding:"required"`
	DestinationQueue string `json:"destinationQueue" binding:"required"`
}

// CreateShovelHandler installs a move-messages shovel.
// PUT /api/v1/clusters/:id/parameters/shovel/:vhost/:name
func (h *Handlers) CreateShovelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ep := h.resolve(c)
		if ep == nil {
			return
		}
		var req MoveMessagesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		vhost := c.Param("vhost")

		def := rabbit.ShovelDefinition{
			SourceURI:        "amqp://",
			SourceQueue:      req.SourceQueue,
			DestinationURI:   "amqp://",
			DestinationQueue: req.DestinationQueue,
		}
		entry := h.entry(c, ep, models.OpMoveMessagesQueue, "queue", req.SourceQueue, vhost)
		entry.Description = "move messages to " + req.DestinationQueue
		err := h.recorder.Do(c.Request.Context(), entry, func() error {
			if req.SourceQueue == req.DestinationQueue {
				return rabbit.InvalidInput("source and destination queues must differ")
			}
			return h.agg.CreateShovel(c.Request.Context(), ep, vhost, c.Param("name"), def)
		})
		if err != nil {
			proxyError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "shovel created"})
	}
}
