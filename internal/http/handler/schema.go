package handler

import (
	"net/http"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"

	"eduops.app/relay/internal/mapper"
	"eduops.app/relay/internal/model"
)

var (
	webhookSchemaOnce sync.Once
	webhookSchema     *jsonschema.Schema
)

// WebhookSchema publishes the JSON Schema of an accepted delivery body so the
// platform-side configuration can be checked against it.
func WebhookSchema(c *gin.Context) {
	webhookSchemaOnce.Do(func() {
		webhookSchema = BuildWebhookSchema()
	})
	c.JSON(http.StatusOK, webhookSchema)
}

// BuildWebhookSchema reflects the delivery envelope. Ids and timestamps are
// accepted as strings or numbers, matching how they are decoded.
func BuildWebhookSchema() *jsonschema.Schema {
	stringOrNumber := func(format string) *jsonschema.Schema {
		return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{
			{Type: "string", Format: format},
			{Type: "integer"},
		}}
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(model.RemoteID("")):
				return stringOrNumber("")
			case reflect.TypeOf(model.RemoteTime{}):
				return stringOrNumber("date-time")
			}
			return nil
		},
	}
	schema := reflector.Reflect(&mapper.WebhookEnvelope{})
	schema.Title = "Platform webhook delivery"
	return schema
}
