// Package docs registers the OpenAPI description of the genctl facade with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Model lifecycle records",
                "parameters": [{"type": "string", "description": "1 to refresh from the remote service first", "name": "refresh", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}},
                    "502": {"description": "Remote unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/load": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Load a model on the remote service",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.LoadModelRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelRecord"}},
                    "404": {"description": "Unknown model", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflicting operation", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Remote failure", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/unload": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Unload a model on the remote service",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.UnloadModelRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelRecord"}},
                    "409": {"description": "Conflicting operation", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/clear-all": {
            "post": {
                "produces": ["application/json"],
                "summary": "Unload every model",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ClearAllResult"}},
                    "207": {"description": "Some models failed", "schema": {"$ref": "#/definitions/types.ClearAllResult"}}
                }
            }
        },
        "/generate-{mode}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Generate with a fixed preset and wait for the result",
                "parameters": [
                    {"type": "string", "enum": ["art", "video", "streaming"], "name": "mode", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.PromptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerationResponse"}},
                    "409": {"description": "Model not ready", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Queue full", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/jobs": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Queue a generation job",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.JobRequest"}}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.JobResponse"}},
                    "429": {"description": "Queue full", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Job state",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.JobResponse"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "summary": "Cancel a job",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.JobResponse"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}, "kind": {"type": "string"}}},
        "types.LoadModelRequest": {"type": "object", "properties": {"model_type": {"type": "string", "example": "generative_art"}, "force_reload": {"type": "boolean"}}},
        "types.UnloadModelRequest": {"type": "object", "properties": {"model_type": {"type": "string", "example": "generative_art"}}},
        "types.ModelRecord": {"type": "object", "properties": {"model_type": {"type": "string"}, "status": {"type": "string", "example": "loaded"}, "last_error": {"type": "string"}, "updated_at_unix": {"type": "integer"}, "loading_time": {"type": "number"}, "memory_usage_mb": {"type": "number"}}},
        "types.StatusResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "data": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.ModelRecord"}}}},
        "types.ClearOutcome": {"type": "object", "properties": {"status": {"type": "string"}, "error": {"type": "string"}}},
        "types.ClearAllResult": {"type": "object", "properties": {"success": {"type": "boolean"}, "models": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.ClearOutcome"}}, "sweep_error": {"type": "string"}, "sweep_skipped": {"type": "string"}}},
        "types.PromptRequest": {"type": "object", "properties": {"prompt": {"type": "string"}}},
        "types.JobRequest": {"type": "object", "properties": {"mode": {"type": "string", "example": "art"}, "prompt": {"type": "string"}}},
        "types.GenerationResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "image_base64": {"type": "string"}, "video_filename": {"type": "string"}, "video_url": {"type": "string"}, "prompt_used": {"type": "string"}, "processing_time": {"type": "number"}, "num_frames": {"type": "integer"}, "fps": {"type": "integer"}, "model_used": {"type": "string"}}},
        "types.JobResponse": {"type": "object", "properties": {"id": {"type": "string"}, "mode": {"type": "string"}, "state": {"type": "string"}, "submitted_at_unix": {"type": "integer"}, "error": {"type": "string"}, "error_kind": {"type": "string"}, "result": {"$ref": "#/definitions/types.GenerationResponse"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "genctl API",
	Description:      "Local facade for model lifecycle and generation jobs on a remote generation service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
