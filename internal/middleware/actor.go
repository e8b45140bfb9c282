package middleware

import "github.com/gin-gonic/gin"

// ContextActorKey stores the acting user's identifier on the request context.
const ContextActorKey = "actor_id"

// ActorHeader is the header the API gateway forwards after authenticating.
const ActorHeader = "X-Actor-ID"

// Actor copies the gateway-provided actor identifier onto the context so
// handlers and audit logging can attribute changes.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := c.GetHeader(ActorHeader); actor != "" {
			c.Set(ContextActorKey, actor)
		}
		c.Next()
	}
}

// ActorID returns the actor identifier for the request, empty when the
// gateway did not forward one.
func ActorID(c *gin.Context) string {
	if v, ok := c.Get(ContextActorKey); ok {
		if actor, ok := v.(string); ok {
			return actor
		}
	}
	return ""
}
